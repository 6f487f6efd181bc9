package unittest

import (
	"sync"
	"testing"
)

// TestLogger_Concurrent creates and uses loggers from concurrent goroutines,
// as tests do while background routines of earlier tests still log. Run with
// -race to detect writes to zerolog's globals.
func TestLogger_Concurrent(t *testing.T) {
	background := Logger()
	stop := make(chan struct{})
	var logging sync.WaitGroup
	logging.Add(1)
	go func() {
		defer logging.Done()
		for {
			select {
			case <-stop:
				return
			default:
				background.Debug().Msg("background routine")
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			log := Logger()
			log.Info().Int("worker", i).Msg("new logger")
		}(i)
	}
	RequireReturnsBefore(t, wg.Wait, DefaultTimeout, "loggers were not created")

	close(stop)
	logging.Wait()
}
