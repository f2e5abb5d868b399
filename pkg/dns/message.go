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

// Package dns implements the embedded authoritative resolver: a
// chain-of-responsibility stack of handlers that answers DNS queries for
// container hostnames, one UDP datagram at a time.
package dns

import (
	"net"
	"time"

	miekgdns "github.com/miekg/dns"
)

// MessageType distinguishes a query from a response.
type MessageType int

const (
	TypeQuery MessageType = iota
	TypeResponse
)

// OperationCode mirrors the DNS opcode field; only Query is meaningfully
// supported here.
type OperationCode int

const (
	OpQuery OperationCode = iota
	OpOther
)

// ReturnCode is the subset of DNS RCODEs this resolver produces.
type ReturnCode int

const (
	NoError ReturnCode = iota
	FormatError
	NotImplemented
	NonExistentDomain
)

// RecordType is the DNS question/answer type, narrowed to what the chain
// reasons about explicitly.
type RecordType int

const (
	TypeA RecordType = iota
	TypeAAAA
	TypeNS
	TypeCNAME
	TypeSOA
	TypePTR
	TypeMX
	TypeTXT
	TypeSRV
	TypeANY
	TypeAXFR
	TypeIXFR
	TypeUnknown
)

// knownUnsupported is the fixed set of well-known types that must yield
// notImplemented rather than formatError.
var knownUnsupported = map[RecordType]bool{
	TypeAAAA: true, TypeNS: true, TypeCNAME: true, TypeSOA: true, TypePTR: true,
	TypeMX: true, TypeTXT: true, TypeSRV: true, TypeANY: true, TypeAXFR: true, TypeIXFR: true,
}

// Question is a single DNS question; the resolver only ever handles
// messages carrying exactly one.
type Question struct {
	Name string
	Type RecordType
}

// HostRecord is the only supported answer shape: a hostname resolved to an
// IPv4 address with a per-leaf TTL.
type HostRecord struct {
	Name string
	TTL  time.Duration
	IP   net.IP
}

// Message is the resolver's in-memory representation of a DNS packet.
type Message struct {
	ID            uint16
	Type          MessageType
	OperationCode OperationCode
	ReturnCode    ReturnCode
	Questions     []Question
	Answers       []HostRecord
}

// response builds a response Message echoing id/question with the given
// return code and answers.
func response(id uint16, q []Question, rcode ReturnCode, answers ...HostRecord) *Message {
	return &Message{ID: id, Type: TypeResponse, OperationCode: OpQuery, ReturnCode: rcode, Questions: q, Answers: answers}
}

// toWireType maps a RecordType to its miekg/dns wire constant, used only
// for encode/decode at the UDP boundary (server.go).
func toWireType(t RecordType) uint16 {
	switch t {
	case TypeA:
		return miekgdns.TypeA
	case TypeAAAA:
		return miekgdns.TypeAAAA
	case TypeNS:
		return miekgdns.TypeNS
	case TypeCNAME:
		return miekgdns.TypeCNAME
	case TypeSOA:
		return miekgdns.TypeSOA
	case TypePTR:
		return miekgdns.TypePTR
	case TypeMX:
		return miekgdns.TypeMX
	case TypeTXT:
		return miekgdns.TypeTXT
	case TypeSRV:
		return miekgdns.TypeSRV
	case TypeANY:
		return miekgdns.TypeANY
	case TypeAXFR:
		return miekgdns.TypeAXFR
	case TypeIXFR:
		return miekgdns.TypeIXFR
	default:
		return 0
	}
}

func fromWireType(t uint16) RecordType {
	switch t {
	case miekgdns.TypeA:
		return TypeA
	case miekgdns.TypeAAAA:
		return TypeAAAA
	case miekgdns.TypeNS:
		return TypeNS
	case miekgdns.TypeCNAME:
		return TypeCNAME
	case miekgdns.TypeSOA:
		return TypeSOA
	case miekgdns.TypePTR:
		return TypePTR
	case miekgdns.TypeMX:
		return TypeMX
	case miekgdns.TypeTXT:
		return TypeTXT
	case miekgdns.TypeSRV:
		return TypeSRV
	case miekgdns.TypeANY:
		return TypeANY
	case miekgdns.TypeAXFR:
		return TypeAXFR
	case miekgdns.TypeIXFR:
		return TypeIXFR
	default:
		return TypeUnknown
	}
}

func toWireRcode(r ReturnCode) int {
	switch r {
	case NoError:
		return miekgdns.RcodeSuccess
	case FormatError:
		return miekgdns.RcodeFormatError
	case NotImplemented:
		return miekgdns.RcodeNotImplemented
	case NonExistentDomain:
		return miekgdns.RcodeNameError
	default:
		return miekgdns.RcodeServerFailure
	}
}

// decode parses a raw UDP payload into a Message using miekg/dns's wire
// parser, narrowed to the fields the resolver chain reasons about.
func decode(payload []byte) (*Message, error) {
	var wm miekgdns.Msg
	if err := wm.Unpack(payload); err != nil {
		return nil, err
	}
	m := &Message{ID: wm.Id}
	if wm.Response {
		m.Type = TypeResponse
	} else {
		m.Type = TypeQuery
	}
	if wm.Opcode == miekgdns.OpcodeQuery {
		m.OperationCode = OpQuery
	} else {
		m.OperationCode = OpOther
	}
	for _, q := range wm.Question {
		m.Questions = append(m.Questions, Question{
			Name: trimRootDot(q.Name),
			Type: fromWireType(q.Qtype),
		})
	}
	return m, nil
}

// encode serializes m back to DNS wire format, used only for the A records
// this resolver actually answers.
func encode(m *Message) ([]byte, error) {
	wm := new(miekgdns.Msg)
	wm.Id = m.ID
	wm.Response = m.Type == TypeResponse
	wm.Opcode = miekgdns.OpcodeQuery
	wm.Rcode = toWireRcode(m.ReturnCode)
	for _, q := range m.Questions {
		wm.Question = append(wm.Question, miekgdns.Question{
			Name:   miekgdns.Fqdn(q.Name),
			Qtype:  toWireType(q.Type),
			Qclass: miekgdns.ClassINET,
		})
	}
	for _, a := range m.Answers {
		wm.Answer = append(wm.Answer, &miekgdns.A{
			Hdr: miekgdns.RR_Header{
				Name:   miekgdns.Fqdn(a.Name),
				Rrtype: miekgdns.TypeA,
				Class:  miekgdns.ClassINET,
				Ttl:    uint32(a.TTL / time.Second),
			},
			A: a.IP,
		})
	}
	return wm.Pack()
}

func trimRootDot(name string) string {
	if n := len(name); n > 0 && name[n-1] == '.' {
		return name[:n-1]
	}
	return name
}
