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

// Package eventbus fans container and service lifecycle events out to any
// number of subscribers, in-process or over a websocket connection.
package eventbus

import (
	"encoding/json"
	"sync"
	"time"

	"tailscale.com/util/set"
)

// Type names one kind of event this daemon publishes.
type Type string

const (
	TypeUnknown          Type = "unknown"
	TypeContainerCreated Type = "containerCreated"
	TypeContainerDeleted Type = "containerDeleted"
	TypeVolumeCreated    Type = "volumeCreated"
	TypeVolumeDeleted    Type = "volumeDeleted"
	TypePluginLoaded     Type = "pluginLoaded"
	TypePluginUnloaded   Type = "pluginUnloaded"
)

// Data wraps an arbitrary payload so Event's JSON encoding degrades to
// null instead of erroring when Data is nil.
type Data struct {
	Value any
}

func (d Data) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value)
}

// Event is the wire shape published to every subscriber.
type Event struct {
	Time   int64  `json:"time"`
	Source string `json:"source"`
	Type   Type   `json:"type"`
	Data   Data   `json:"data,omitempty"`
}

// listener pairs a delivery channel with an optional filter.
type listener struct {
	ch     chan<- Event
	filter func(Event) bool
}

// Bus fans events out to registered listeners. It never blocks a
// publisher on a slow subscriber: delivery to a full channel is dropped.
type Bus struct {
	mu        sync.Mutex
	listeners set.HandleSet[*listener]
}

// New constructs an empty event bus.
func New() *Bus {
	return &Bus{}
}

// Publish stamps ev.Time and delivers it to every listener whose filter
// (if any) accepts it.
func (b *Bus) Publish(ev Event) {
	ev.Time = time.Now().UnixMilli()
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, l := range b.listeners {
		if l.filter != nil && !l.filter(ev) {
			continue
		}
		select {
		case l.ch <- ev:
		default:
		}
	}
}

// Subscribe registers ch to receive events matching filter (nil matches
// everything), returning a handle to later Unsubscribe.
func (b *Bus) Subscribe(ch chan<- Event, filter func(Event) bool) set.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.listeners.Add(&listener{ch: ch, filter: filter})
}

// Unsubscribe removes a listener registered with Subscribe.
func (b *Bus) Unsubscribe(h set.Handle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.listeners, h)
}
