package source

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 500*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 500ms", config.InitialBackoff)
	}
	if config.MaxBackoff != 10*time.Second {
		t.Errorf("MaxBackoff = %v, want 10s", config.MaxBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfig_BackoffFor(t *testing.T) {
	config := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}

	if got := config.backoffFor(ErrorClassServer); got != time.Second {
		t.Errorf("backoffFor(server) = %v, want 1s", got)
	}
	if got := config.backoffFor(ErrorClassRateLimit); got != 3*time.Second {
		t.Errorf("backoffFor(rate_limit) = %v, want 3s (capped)", got)
	}
}

func TestRetryWithBackoff(t *testing.T) {
	serverErr := &SourceError{StatusCode: 503, ErrorClass: ErrorClassServer}
	clientErr := &SourceError{StatusCode: 404, ErrorClass: ErrorClassClient}

	tests := []struct {
		name         string
		attempts     int
		errs         []error
		wantCalls    int
		wantErr      bool
		wantExhausts bool
	}{
		{
			name:      "success first attempt",
			attempts:  3,
			errs:      []error{nil},
			wantCalls: 1,
		},
		{
			name:      "success after retries",
			attempts:  3,
			errs:      []error{serverErr, serverErr, nil},
			wantCalls: 3,
		},
		{
			name:      "client error not retried",
			attempts:  3,
			errs:      []error{clientErr},
			wantCalls: 1,
			wantErr:   true,
		},
		{
			name:         "retries exhausted",
			attempts:     3,
			errs:         []error{serverErr, serverErr, serverErr},
			wantCalls:    3,
			wantErr:      true,
			wantExhausts: true,
		},
		{
			name:         "single attempt",
			attempts:     1,
			errs:         []error{serverErr},
			wantCalls:    1,
			wantErr:      true,
			wantExhausts: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := retryWithBackoff(context.Background(), fastRetryConfig(tt.attempts), zerolog.Nop(), func() error {
				e := tt.errs[calls]
				calls++
				return e
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if errors.Is(err, ErrRetryExhausted) != tt.wantExhausts {
				t.Errorf("errors.Is(err, ErrRetryExhausted) = %v, want %v", !tt.wantExhausts, tt.wantExhausts)
			}
			if tt.wantErr {
				var srcErr *SourceError
				if !errors.As(err, &srcErr) {
					t.Errorf("error %v should wrap *SourceError", err)
				}
			}
		})
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	config := RetryConfig{
		MaxAttempts:       5,
		InitialBackoff:    time.Hour,
		MaxBackoff:        time.Hour,
		BackoffMultiplier: 2.0,
	}

	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, config, zerolog.Nop(), func() error {
			calls++
			return &SourceError{StatusCode: 500, ErrorClass: ErrorClassServer}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) {
			t.Errorf("err = %v, want ErrContextCancelled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("retryWithBackoff did not return after cancellation")
	}

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryWithBackoff_RetryAfter(t *testing.T) {
	tests := []struct {
		name       string
		retryAfter time.Duration
		maxBackoff time.Duration
		minElapsed time.Duration
		maxElapsed time.Duration
	}{
		{
			name:       "retry after extends backoff",
			retryAfter: 100 * time.Millisecond,
			maxBackoff: time.Second,
			minElapsed: 75 * time.Millisecond,
			maxElapsed: time.Second,
		},
		{
			name:       "retry after capped by max backoff",
			retryAfter: time.Hour,
			maxBackoff: 10 * time.Millisecond,
			minElapsed: 0,
			maxElapsed: time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfig{
				MaxAttempts:       2,
				InitialBackoff:    time.Millisecond,
				MaxBackoff:        tt.maxBackoff,
				BackoffMultiplier: 2.0,
			}

			calls := 0
			start := time.Now()
			err := retryWithBackoff(context.Background(), config, zerolog.Nop(), func() error {
				calls++
				if calls == 1 {
					return &SourceError{StatusCode: 503, ErrorClass: ErrorClassServer, RetryAfter: tt.retryAfter}
				}
				return nil
			})
			elapsed := time.Since(start)

			if err != nil {
				t.Fatalf("err = %v, want nil", err)
			}
			if elapsed < tt.minElapsed || elapsed > tt.maxElapsed {
				t.Errorf("elapsed = %v, want between %v and %v", elapsed, tt.minElapsed, tt.maxElapsed)
			}
		})
	}
}
