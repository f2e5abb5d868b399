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

// Package harness adapts IPC routes to service calls: decode typed fields
// and JSON blobs from the request, call the service, and encode the
// result (or propagate the structured error) into the reply.
package harness

import (
	"github.com/containervm/hostd/pkg/apierr"
	"github.com/containervm/hostd/pkg/ipc"
)

// requiredString reads a required string field, failing invalidArgument
// when it is missing.
func requiredString(req *ipc.Message, key string) (string, error) {
	v, ok := req.GetString(key)
	if !ok || v == "" {
		return "", apierr.InvalidArgumentf("missing required field %q", key)
	}
	return v, nil
}

// replyWithJSON builds req's reply and encodes v into key as JSON.
func replyWithJSON(req *ipc.Message, key string, v any) (*ipc.Message, error) {
	reply, err := req.Reply()
	if err != nil {
		return nil, err
	}
	if err := reply.SetJSON(key, v); err != nil {
		return nil, err
	}
	return reply, nil
}

// replyEmpty builds req's reply with no payload, for operations whose
// success carries no result value.
func replyEmpty(req *ipc.Message) (*ipc.Message, error) {
	return req.Reply()
}
