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
	"sync"
	"testing"
	"time"

	"google.golang.org/grpc/balancer"
	"google.golang.org/grpc/resolver"
)

const cacheTestTimeout = 100 * time.Millisecond

// countingCC counts the SubConns that currently exist on the underlying
// (fake) channel, so tests can observe when the cache really shuts one down.
type countingCC struct {
	balancer.ClientConn

	mu       sync.Mutex
	subConns map[*countedSubConn]bool
}

type countedSubConn struct {
	balancer.SubConn
	cc *countingCC
}

func (sc *countedSubConn) Shutdown() {
	sc.cc.mu.Lock()
	delete(sc.cc.subConns, sc)
	sc.cc.mu.Unlock()
}

func newCountingCC() *countingCC {
	return &countingCC{subConns: make(map[*countedSubConn]bool)}
}

func (cc *countingCC) NewSubConn([]resolver.Address, balancer.NewSubConnOptions) (balancer.SubConn, error) {
	sc := &countedSubConn{cc: cc}
	cc.mu.Lock()
	cc.subConns[sc] = true
	cc.mu.Unlock()
	return sc, nil
}

func (cc *countingCC) liveSubConns() int {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return len(cc.subConns)
}

// verifyCacheSizes checks the number of live SubConns on the underlying
// channel, of SubConns pending deletion in the cache, and of SubConns the
// cache is tracking overall.
func verifyCacheSizes(t *testing.T, cc *countingCC, ccc *lbCacheClientConn, live, pending, tracked int) {
	t.Helper()
	if got := cc.liveSubConns(); got != live {
		t.Fatalf("got %d live SubConns, want %d", got, live)
	}
	ccc.mu.Lock()
	defer ccc.mu.Unlock()
	if got := len(ccc.subConnCache); got != pending {
		t.Fatalf("got %d SubConns pending deletion, want %d", got, pending)
	}
	if got := len(ccc.subConnToAddr); got != tracked {
		t.Fatalf("got %d tracked SubConns, want %d", got, tracked)
	}
}

// waitForCacheSizes polls until the sizes match, for conditions that are
// reached when a cache timer fires.
func waitForCacheSizes(t *testing.T, cc *countingCC, ccc *lbCacheClientConn, live, pending, tracked int) {
	t.Helper()
	deadline := time.Now().Add(10 * cacheTestTimeout)
	for time.Now().Before(deadline) {
		ccc.mu.Lock()
		ok := len(ccc.subConnCache) == pending && len(ccc.subConnToAddr) == tracked
		ccc.mu.Unlock()
		if ok && cc.liveSubConns() == live {
			return
		}
		time.Sleep(cacheTestTimeout / 10)
	}
	t.Fatalf("cache did not reach (live=%d, pending=%d, tracked=%d) in time", live, pending, tracked)
}

func newCacheForTest() (*countingCC, *lbCacheClientConn) {
	cc := newCountingCC()
	ccc := newLBCacheClientConn(cc)
	ccc.timeout = cacheTestTimeout
	return cc, ccc
}

// TestCacheDelaysShutdown verifies that shutting down a SubConn through the
// cache keeps the underlying SubConn alive for the cache timeout, and only
// then releases it.
func (s) TestCacheDelaysShutdown(t *testing.T) {
	cc, ccc := newCacheForTest()

	sc, err := ccc.NewSubConn([]resolver.Address{{Addr: "backend-1"}}, balancer.NewSubConnOptions{})
	if err != nil {
		t.Fatalf("NewSubConn() failed: %v", err)
	}
	verifyCacheSizes(t, cc, ccc, 1, 0, 1)

	sc.Shutdown()
	// Still alive underneath; only marked as pending deletion.
	verifyCacheSizes(t, cc, ccc, 1, 1, 1)

	// Gone after the cache timeout.
	waitForCacheSizes(t, cc, ccc, 0, 0, 0)
}

// TestCacheRevivesSubConn verifies that asking for a SubConn with the same
// address as one pending deletion hands back the cached SubConn and cancels
// its deletion.
func (s) TestCacheRevivesSubConn(t *testing.T) {
	cc, ccc := newCacheForTest()

	sc, err := ccc.NewSubConn([]resolver.Address{{Addr: "backend-1"}}, balancer.NewSubConnOptions{})
	if err != nil {
		t.Fatalf("NewSubConn() failed: %v", err)
	}
	sc.Shutdown()
	verifyCacheSizes(t, cc, ccc, 1, 1, 1)

	sc2, err := ccc.NewSubConn([]resolver.Address{{Addr: "backend-1"}}, balancer.NewSubConnOptions{})
	if err != nil {
		t.Fatalf("NewSubConn() failed: %v", err)
	}
	if sc2 != sc {
		t.Fatalf("NewSubConn() for a cached address returned a new SubConn %p, want cached %p", sc2, sc)
	}
	verifyCacheSizes(t, cc, ccc, 1, 0, 1)

	// The canceled deletion must not fire.
	time.Sleep(2 * cacheTestTimeout)
	verifyCacheSizes(t, cc, ccc, 1, 0, 1)

	// A second shutdown goes through the full cycle again.
	sc2.Shutdown()
	verifyCacheSizes(t, cc, ccc, 1, 1, 1)
	waitForCacheSizes(t, cc, ccc, 0, 0, 0)
}

// TestCacheTimerNewSubConnRace makes the deletion timer and a concurrent
// NewSubConn for the same address race, and only checks that nothing
// deadlocks.
func (s) TestCacheTimerNewSubConnRace(t *testing.T) {
	cc, ccc := newCacheForTest()
	ccc.timeout = time.Nanosecond

	sc, err := ccc.NewSubConn([]resolver.Address{{Addr: "backend-1"}}, balancer.NewSubConnOptions{})
	if err != nil {
		t.Fatalf("NewSubConn() failed: %v", err)
	}
	verifyCacheSizes(t, cc, ccc, 1, 0, 1)

	done := make(chan struct{})
	go func() {
		// Each Shutdown arms a timer that fires almost immediately, racing
		// with the NewSubConn that follows.
		for i := 0; i < 1000; i++ {
			sc.Shutdown()
			sc, _ = ccc.NewSubConn([]resolver.Address{{Addr: "backend-1"}}, balancer.NewSubConnOptions{})
		}
		close(done)
	}()
	select {
	case <-time.After(time.Second):
		t.Fatal("deadlock between the cache deletion timer and NewSubConn")
	case <-done:
	}
}
