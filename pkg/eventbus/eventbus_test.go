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

package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPublishSubscribe(t *testing.T) {
	bus := New()
	ch := make(chan Event, 1)
	bus.Subscribe(ch, nil)

	bus.Publish(Event{Source: "containers", Type: TypeContainerCreated, Data: Data{Value: map[string]string{"id": "c1"}}})

	select {
	case ev := <-ch:
		require.Equal(t, TypeContainerCreated, ev.Type)
		require.NotZero(t, ev.Time)
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestSubscribeFilter(t *testing.T) {
	bus := New()
	ch := make(chan Event, 1)
	bus.Subscribe(ch, func(ev Event) bool { return ev.Type == TypeVolumeDeleted })

	bus.Publish(Event{Type: TypeContainerCreated})
	select {
	case <-ch:
		t.Fatal("filtered event should not have been delivered")
	case <-time.After(50 * time.Millisecond):
	}

	bus.Publish(Event{Type: TypeVolumeDeleted})
	select {
	case ev := <-ch:
		require.Equal(t, TypeVolumeDeleted, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("matching event was not delivered")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	ch := make(chan Event, 1)
	handle := bus.Subscribe(ch, nil)
	bus.Unsubscribe(handle)

	bus.Publish(Event{Type: TypeContainerCreated})
	select {
	case <-ch:
		t.Fatal("unsubscribed listener should not receive events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishNeverBlocksOnFullChannel(t *testing.T) {
	bus := New()
	ch := make(chan Event) // unbuffered, no reader
	bus.Subscribe(ch, nil)

	done := make(chan struct{})
	go func() {
		bus.Publish(Event{Type: TypeContainerCreated})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}
