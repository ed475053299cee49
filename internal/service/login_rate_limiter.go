package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// LoginRateLimiter cuenta intentos de login por email normalizado. Un error
// indica que el backend no respondio; el flag devuelto junto al error decide
// si el intento pasa.
type LoginRateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// memoryLoginLimiter guarda los intentos aceptados de cada clave dentro de la
// ventana. Las claves sin intentos vigentes se eliminan en el barrido.
type memoryLoginLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	attempts  map[string][]time.Time
	nextSweep time.Time
	now       func() time.Time
}

// NewLoginRateLimiter crea un rate limiter en memoria con ventana deslizante.
func NewLoginRateLimiter(window time.Duration, max int) LoginRateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryLoginLimiter{
		window:   window,
		max:      max,
		attempts: make(map[string][]time.Time),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryLoginLimiter) Allow(_ context.Context, key string) (bool, error) {
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return false, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if !now.Before(l.nextSweep) {
		l.sweep(cutoff)
		l.nextSweep = now.Add(l.window)
	}

	recent := pruneAttempts(l.attempts[key], cutoff)
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false, nil
	}
	l.attempts[key] = append(recent, now)
	return true, nil
}

func (l *memoryLoginLimiter) sweep(cutoff time.Time) {
	for key, ts := range l.attempts {
		if len(ts) == 0 || !ts[len(ts)-1].After(cutoff) {
			delete(l.attempts, key)
		}
	}
}

// pruneAttempts descarta los timestamps fuera de la ventana. ts esta ordenado.
func pruneAttempts(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}
