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
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades r and streams every event matching filter to the
// client as JSON text frames until the connection closes, adapting the
// teacher's websocketutil.ConnReadWriter push loop to a pure broadcaster.
func (b *Bus) ServeWebSocket(w http.ResponseWriter, r *http.Request, filter func(Event) bool) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("eventbus: websocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan Event, 16)
	handle := b.Subscribe(events, filter)
	defer b.Unsubscribe(handle)

	// Drain client frames so the read side is never blocked; subscribers
	// do not send anything meaningful back over this connection.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			logrus.WithError(err).Error("eventbus: marshal event failed")
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}
