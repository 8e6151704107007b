/*
 * Copyright (c) 2026 QAIL Authors.
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
 */

package pg

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/qail-lang/qail-go/internal/logging"
	"github.com/qail-lang/qail-go/qerr"
)

// pool is a bounded set of connections. The semaphore bounds checked-out
// connections; open = in-use + idle never exceeds the cap. Idle
// connections sit in a LIFO stack for cache warmth.
type pool struct {
	cfg *Config
	sem *semaphore.Weighted
	log *logging.Logger

	mu      sync.Mutex
	idle    []*conn
	numOpen int
	closed  bool

	healthStop chan struct{}
	healthWG   sync.WaitGroup
}

func newPool(cfg *Config) *pool {
	p := &pool{
		cfg:        cfg,
		sem:        semaphore.NewWeighted(int64(cfg.PoolMaxConns)),
		log:        logging.NewLogger("pool"),
		idle:       make([]*conn, 0, cfg.PoolMaxConns),
		healthStop: make(chan struct{}),
	}
	if cfg.HealthCheckInterval > 0 {
		p.healthWG.Add(1)
		go p.healthLoop()
	}
	return p
}

// warm pre-opens the configured minimum connections. Failures here are not
// fatal; the pool fills lazily on demand.
func (p *pool) warm(ctx context.Context) {
	for i := 0; i < p.cfg.PoolMinConns; i++ {
		c, err := dial(ctx, p.cfg)
		if err != nil {
			p.log.Warn("pre-warm connection failed", "error", err)
			return
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.close()
			return
		}
		p.numOpen++
		p.idle = append(p.idle, c)
		p.mu.Unlock()
	}
}

// checkout acquires a connection, waiting up to the configured checkout
// timeout for a permit when the pool is saturated.
func (p *pool) checkout(ctx context.Context) (*conn, error) {
	start := time.Now()
	acquireCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && p.cfg.CheckoutTimeout > 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, p.cfg.CheckoutTimeout)
		defer cancel()
	}
	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, qerr.PoolTimeout(time.Since(start).Round(time.Millisecond).String())
		}
		if p.isClosed() {
			return nil, qerr.PoolClosed()
		}
		return nil, qerr.Cancelled(err)
	}

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			p.sem.Release(1)
			return nil, qerr.PoolClosed()
		}
		if n := len(p.idle); n > 0 {
			c := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			if c.poisoned || c.state == stateClosed {
				p.discard(c)
				continue
			}
			return c, nil
		}
		p.numOpen++
		p.mu.Unlock()

		c, err := dial(ctx, p.cfg)
		if err != nil {
			p.mu.Lock()
			p.numOpen--
			p.mu.Unlock()
			p.sem.Release(1)
			return nil, err
		}
		return c, nil
	}
}

// checkin returns a checked-out connection. Poisoned connections are
// closed, never reused.
func (p *pool) checkin(c *conn) {
	defer p.sem.Release(1)
	if c.poisoned || c.state == stateClosed {
		p.discard(c)
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.discard(c)
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// discard closes a connection and forgets it. The caller handles any
// semaphore permit.
func (p *pool) discard(c *conn) {
	c.close()
	p.mu.Lock()
	p.numOpen--
	p.mu.Unlock()
}

// close shuts the pool down, closing idle connections. Checked-out
// connections close on checkin.
func (p *pool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.numOpen -= len(idle)
	p.mu.Unlock()

	close(p.healthStop)
	p.healthWG.Wait()
	for _, c := range idle {
		c.close()
	}
}

func (p *pool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Stats is a snapshot of pool occupancy.
type Stats struct {
	OpenConnections  int
	IdleConnections  int
	InUse            int
	MaxConnections   int
	CachedStatements int
}

func (p *pool) stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	cached := 0
	for _, c := range p.idle {
		cached += c.cache.len()
	}
	return Stats{
		OpenConnections:  p.numOpen,
		IdleConnections:  len(p.idle),
		InUse:            p.numOpen - len(p.idle),
		MaxConnections:   p.cfg.PoolMaxConns,
		CachedStatements: cached,
	}
}

// healthLoop pings idle connections on the configured interval, dropping
// the ones that fail. Connections under test are out of the idle stack, so
// checkout never races them.
func (p *pool) healthLoop() {
	defer p.healthWG.Done()
	ticker := time.NewTicker(p.cfg.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-p.healthStop:
			return
		case <-ticker.C:
		}
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return
		}
		idle := p.idle
		p.idle = nil
		p.mu.Unlock()

		for _, c := range idle {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := c.ping(ctx)
			cancel()
			if err != nil {
				p.log.Warn("health check failed, dropping connection", "conn", c.id, "error", err)
				p.discard(c)
				continue
			}
			p.mu.Lock()
			if p.closed {
				p.mu.Unlock()
				p.discard(c)
				continue
			}
			p.idle = append(p.idle, c)
			p.mu.Unlock()
		}
	}
}
