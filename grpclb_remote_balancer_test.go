/*
 *
 * Copyright 2017 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

package grpclb

import (
	"testing"

	lbpb "google.golang.org/grpc/balancer/grpclb/grpc_lb_v1"
)

// TestServerListEqual exercises the equality check used to suppress
// duplicate serverlists. Drop entries and entry order participate in the
// comparison.
func (s) TestServerListEqual(t *testing.T) {
	backend := func(ip byte, port int32, token string) *lbpb.Server {
		return &lbpb.Server{IpAddress: []byte{10, 0, 0, ip}, Port: port, LoadBalanceToken: token}
	}
	drop := &lbpb.Server{LoadBalanceToken: "drop-token", Drop: true}

	tests := []struct {
		name string
		a, b []*lbpb.Server
		want bool
	}{
		{
			name: "both_empty",
			a:    nil,
			b:    []*lbpb.Server{},
			want: true,
		},
		{
			name: "same_entries",
			a:    []*lbpb.Server{backend(1, 80, "t1"), drop},
			b:    []*lbpb.Server{backend(1, 80, "t1"), drop},
			want: true,
		},
		{
			name: "different_order",
			a:    []*lbpb.Server{backend(1, 80, "t1"), backend(2, 80, "t2")},
			b:    []*lbpb.Server{backend(2, 80, "t2"), backend(1, 80, "t1")},
			want: false,
		},
		{
			name: "different_token",
			a:    []*lbpb.Server{backend(1, 80, "t1")},
			b:    []*lbpb.Server{backend(1, 80, "t2")},
			want: false,
		},
		{
			name: "drop_flag_differs",
			a:    []*lbpb.Server{{LoadBalanceToken: "t1"}},
			b:    []*lbpb.Server{{LoadBalanceToken: "t1", Drop: true}},
			want: false,
		},
		{
			name: "prefix",
			a:    []*lbpb.Server{backend(1, 80, "t1")},
			b:    []*lbpb.Server{backend(1, 80, "t1"), backend(2, 80, "t2")},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverListEqual(tt.a, tt.b); got != tt.want {
				t.Errorf("serverListEqual() = %v, want %v", got, tt.want)
			}
			if got := serverListEqual(tt.b, tt.a); got != tt.want {
				t.Errorf("serverListEqual() with swapped args = %v, want %v", got, tt.want)
			}
		})
	}
}
