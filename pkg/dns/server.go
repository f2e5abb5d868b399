// Copyright 2025 AUTHORS
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dns

import (
	"context"
	"net"

	"github.com/sirupsen/logrus"
	"tailscale.com/syncs"
)

// Server reads UDP datagrams, delegates to a root Handler, and always
// sends exactly one response per datagram.
type Server struct {
	Root Handler
	log  *logrus.Entry

	wg syncs.WaitGroup
}

// NewServer constructs a Server around root, the composed handler chain
// (typically a StandardQueryValidator wrapping a Composite).
func NewServer(root Handler) *Server {
	return &Server{Root: root, log: logrus.WithField("component", "dns")}
}

// ListenAndServe binds addr (host:port) over UDP and serves until ctx is
// canceled. A Unix datagram socket transport is a forward-compatible stub
// and is not wired here.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}

	s.wg.Go(func() {
		<-ctx.Done()
		conn.Close()
	})

	buf := make([]byte, 65535)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				s.wg.Wait()
				return nil
			default:
				s.log.WithError(err).Warn("dns: read failed")
				continue
			}
		}
		payload := make([]byte, n)
		copy(payload, buf[:n])
		s.wg.Go(func() { s.handleDatagram(conn, from, payload) })
	}
}

func (s *Server) handleDatagram(conn *net.UDPConn, from *net.UDPAddr, payload []byte) {
	query, err := decode(payload)
	if err != nil {
		s.log.WithError(err).Warn("dns: malformed query")
		s.send(conn, from, response(0, nil, NotImplemented))
		return
	}

	resp := s.Root.Answer(query)
	if resp == nil {
		resp = response(query.ID, query.Questions, NotImplemented)
	}
	// An empty-answers noError response is unconditionally rewritten to
	// NXDOMAIN before sending.
	if resp.ReturnCode == NoError && len(resp.Answers) == 0 {
		resp.ReturnCode = NonExistentDomain
	}
	s.send(conn, from, resp)
}

func (s *Server) send(conn *net.UDPConn, from *net.UDPAddr, m *Message) {
	payload, err := encode(m)
	if err != nil {
		s.log.WithError(err).Error("dns: encode response failed")
		return
	}
	if _, err := conn.WriteToUDP(payload, from); err != nil {
		s.log.WithError(err).Warn("dns: write response failed")
	}
}
