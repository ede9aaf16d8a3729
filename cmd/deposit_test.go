package cmd

import (
	"sync"
	"testing"
	"time"

	"github.com/briandowns/spinner"
	"github.com/stretchr/testify/assert"

	"deposit-bridge/pkg/session"
)

func TestSpinnerStatus(t *testing.T) {
	s := spinner.New(spinner.CharSets[14], time.Millisecond)
	update := spinnerStatus(s, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			update(session.Session{StatusMessage: "Waiting for confirmation..."})
		}()
	}
	wg.Wait()

	s.Lock()
	assert.Equal(t, " Waiting for confirmation...", s.Suffix)
	s.Unlock()

	update(session.Session{})
	spinnerStatus(s, true)(session.Session{StatusMessage: "ignored"})
	s.Lock()
	assert.Equal(t, " Waiting for confirmation...", s.Suffix)
	s.Unlock()
}
