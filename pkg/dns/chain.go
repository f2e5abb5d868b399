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

import "time"

// Handler answers a query, or returns nil to let the caller try the next
// handler in the chain of responsibility.
type Handler interface {
	Answer(q *Message) *Message
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func(q *Message) *Message

func (f HandlerFunc) Answer(q *Message) *Message { return f(q) }

// StandardQueryValidator rejects malformed queries before they reach the
// rest of the chain.
type StandardQueryValidator struct {
	Next Handler
}

func (v *StandardQueryValidator) Answer(q *Message) *Message {
	if q.Type == TypeResponse {
		return response(q.ID, q.Questions, FormatError)
	}
	if q.OperationCode != OpQuery {
		return response(q.ID, q.Questions, NotImplemented)
	}
	if len(q.Questions) != 1 {
		return response(q.ID, q.Questions, FormatError)
	}
	return v.Next.Answer(q)
}

// Composite tries each inner handler in order; the first non-nil response
// wins. If every handler yields nil, Composite yields nil too.
type Composite struct {
	Handlers []Handler
}

func NewComposite(handlers ...Handler) *Composite {
	return &Composite{Handlers: handlers}
}

func (c *Composite) Answer(q *Message) *Message {
	for _, h := range c.Handlers {
		if resp := h.Answer(q); resp != nil {
			return resp
		}
	}
	return nil
}

// IPResolver is the Network Service surface the ContainerLookup leaf
// depends on: resolve a container hostname to its current IP allocation.
type IPResolver interface {
	Lookup(name string) (cidr string, ok bool)
}

// ContainerLookup is the only network-aware leaf: it asks a Network
// Service for the current allocation backing a container hostname.
type ContainerLookup struct {
	Resolver IPResolver
	TTL      time.Duration // defaults to 5s when zero
}

func (c *ContainerLookup) ttl() time.Duration {
	if c.TTL == 0 {
		return 5 * time.Second
	}
	return c.TTL
}

func (c *ContainerLookup) Answer(q *Message) *Message {
	question := q.Questions[0]
	if question.Type == TypeA {
		ip, ok := lookupA(c.Resolver, question.Name)
		if !ok {
			return nil
		}
		return response(q.ID, q.Questions, NoError, HostRecord{Name: question.Name, TTL: c.ttl(), IP: ip})
	}
	if knownUnsupported[question.Type] {
		return response(q.ID, q.Questions, NotImplemented)
	}
	return response(q.ID, q.Questions, FormatError)
}

// HostTableResolver answers from a fixed, static name to IPv4 map.
type HostTableResolver struct {
	Hosts map[string]string // name -> "A.B.C.D"
	TTL   time.Duration     // defaults to 300s when zero
}

func (h *HostTableResolver) ttl() time.Duration {
	if h.TTL == 0 {
		return 300 * time.Second
	}
	return h.TTL
}

func (h *HostTableResolver) Answer(q *Message) *Message {
	question := q.Questions[0]
	if question.Type == TypeA {
		addr, ok := h.Hosts[question.Name]
		if !ok {
			return nil
		}
		ip := parseIPv4(addr)
		if ip == nil {
			return nil
		}
		return response(q.ID, q.Questions, NoError, HostRecord{Name: question.Name, TTL: h.ttl(), IP: ip})
	}
	if knownUnsupported[question.Type] {
		return response(q.ID, q.Questions, NotImplemented)
	}
	return response(q.ID, q.Questions, FormatError)
}

// NxDomainResolver is the terminal leaf: it always answers, refusing the
// name outright for A queries and politely declining everything else.
type NxDomainResolver struct{}

func (NxDomainResolver) Answer(q *Message) *Message {
	question := q.Questions[0]
	switch {
	case question.Type == TypeA:
		return response(q.ID, q.Questions, NonExistentDomain)
	case knownUnsupported[question.Type]:
		return response(q.ID, q.Questions, NotImplemented)
	default:
		return response(q.ID, q.Questions, FormatError)
	}
}
