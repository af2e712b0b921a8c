package httpserver

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 5 * time.Minute
	limiterIdleTimeout   = 10 * time.Minute
)

// LimitReason says which limit refused a connection. Empty means admitted.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
	LimitReasonRate   LimitReason = "rate_limit"
)

// ConnectionLimits gates WebSocket upgrades with a token bucket per IP, a
// cap on concurrent connections per IP and a cap on the process total.
type ConnectionLimits struct {
	clock    clockwork.Clock
	maxTotal int
	maxPerIP int
	rate     rate.Limit
	burst    int

	mu      sync.Mutex
	total   int
	perIP   map[string]int
	buckets map[string]*bucket
	sweepAt time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewConnectionLimits(clock clockwork.Clock, maxTotal, maxPerIP int, perSecond float64, burst int) *ConnectionLimits {
	return &ConnectionLimits{
		clock:    clock,
		maxTotal: maxTotal,
		maxPerIP: maxPerIP,
		rate:     rate.Limit(perSecond),
		burst:    burst,
		perIP:    make(map[string]int),
		buckets:  make(map[string]*bucket),
		sweepAt:  clock.Now().Add(limiterSweepInterval),
	}
}

// Acquire reserves a slot for ip. The rate bucket is charged even when a
// concurrency cap then refuses the connection.
func (l *ConnectionLimits) Acquire(ip string) LimitReason {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if now.After(l.sweepAt) {
		l.sweep(now)
		l.sweepAt = now.Add(limiterSweepInterval)
	}

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now

	if !b.limiter.AllowN(now, 1) {
		return LimitReasonRate
	}
	if l.total >= l.maxTotal {
		return LimitReasonGlobal
	}
	if l.perIP[ip] >= l.maxPerIP {
		return LimitReasonPerIP
	}

	l.total++
	l.perIP[ip]++
	return ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, ok := l.perIP[ip]
	if !ok {
		return
	}
	if n <= 1 {
		delete(l.perIP, ip)
	} else {
		l.perIP[ip] = n - 1
	}
	l.total--
}

// Active returns the number of admitted connections not yet released.
func (l *ConnectionLimits) Active() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

// must hold l.mu
func (l *ConnectionLimits) sweep(now time.Time) {
	cutoff := now.Add(-limiterIdleTimeout)
	for ip, b := range l.buckets {
		if b.lastSeen.Before(cutoff) && l.perIP[ip] == 0 {
			delete(l.buckets, ip)
		}
	}
}
