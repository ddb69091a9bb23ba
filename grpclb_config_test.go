/*
 *
 * Copyright 2019 gRPC authors.
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
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func childPolicies(names ...string) *[]map[string]json.RawMessage {
	var cp []map[string]json.RawMessage
	for _, n := range names {
		cp = append(cp, map[string]json.RawMessage{n: json.RawMessage("{}")})
	}
	return &cp
}

func (s) TestParseFullServiceConfig(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *serviceConfig
	}{
		{
			name: "not_json",
			in:   "",
			want: nil,
		},
		{
			name: "no_lb_config",
			in:   `{"methodConfig":[]}`,
			want: &serviceConfig{},
		},
		{
			name: "grpclb_with_child",
			in:   `{"loadBalancingConfig":[{"grpclb":{"childPolicy":[{"pick_first":{}}]}}]}`,
			want: &serviceConfig{
				LoadBalancingConfig: &[]map[string]*grpclbServiceConfig{
					{grpclbName: {ChildPolicy: childPolicies(pickFirstName)}},
				},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFullServiceConfig(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseFullServiceConfig(%q) returned unexpected diff (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func (s) TestParseServiceConfig(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want *grpclbServiceConfig
	}{
		{
			name: "not_json",
			in:   "",
			want: nil,
		},
		{
			name: "no_grpclb_entry",
			in:   `{"loadBalancingConfig":[{"round_robin":{}}]}`,
			want: nil,
		},
		{
			name: "grpclb_after_other_policy",
			in:   `{"loadBalancingConfig":[{"other":{}},{"grpclb":{"childPolicy":[{"round_robin":{}},{"pick_first":{}}]}}]}`,
			want: &grpclbServiceConfig{ChildPolicy: childPolicies(roundRobinName, pickFirstName)},
		},
		{
			name: "with_service_name",
			in:   `{"loadBalancingConfig":[{"grpclb":{"serviceName":"lb.service.name"}}]}`,
			want: &grpclbServiceConfig{ServiceName: "lb.service.name"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseServiceConfig(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseServiceConfig(%q) returned unexpected diff (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func (s) TestChildIsPickFirst(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{
			name: "not_json",
			in:   "",
			want: false,
		},
		{
			name: "no_child_policy",
			in:   rrServiceConfig,
			want: false,
		},
		{
			name: "pick_first_only",
			in:   pfChildServiceConfig,
			want: true,
		},
		{
			name: "pick_first_before_round_robin",
			in:   `{"loadBalancingConfig":[{"grpclb":{"childPolicy":[{"pick_first":{}},{"round_robin":{}}]}}]}`,
			want: true,
		},
		{
			name: "round_robin_before_pick_first",
			in:   `{"loadBalancingConfig":[{"grpclb":{"childPolicy":[{"round_robin":{}},{"pick_first":{}}]}}]}`,
			want: false,
		},
		{
			name: "unknown_policy_before_pick_first",
			in:   `{"loadBalancingConfig":[{"grpclb":{"childPolicy":[{"unknown_policy":{}},{"pick_first":{}}]}}]}`,
			want: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := childIsPickFirst(tt.in); got != tt.want {
				t.Errorf("childIsPickFirst(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func (s) TestBuilderParseConfig(t *testing.T) {
	b := &lbBuilder{}

	got, err := b.ParseConfig(json.RawMessage(`{"childPolicy":[{"round_robin":{}}],"serviceName":"lb.service.name"}`))
	if err != nil {
		t.Fatalf("ParseConfig() failed: %v", err)
	}
	want := &grpclbServiceConfig{
		ChildPolicy: childPolicies(roundRobinName),
		ServiceName: "lb.service.name",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseConfig() returned unexpected diff (-want +got):\n%s", diff)
	}

	if _, err := b.ParseConfig(json.RawMessage(`{"childPolicy":"not-a-list"}`)); err == nil {
		t.Error("ParseConfig() with a malformed childPolicy succeeded, want error")
	}
}
