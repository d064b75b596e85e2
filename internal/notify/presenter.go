package notify

import (
	"fmt"
	"log"

	"github.com/nicholas-fedor/shoutrrr"
)

// Presenter abstracts the platform delivery capabilities so the store
// can be tested without side effects. Every method must degrade to a
// no-op when the capability is absent; absence is not an error.
type Presenter interface {
	PlaySound(priority Priority)
	Vibrate()
	Notify(title, message string) error
}

// ShoutrrrPresenter delivers system-level notifications through a
// Shoutrrr service URL (e.g. a desktop notification service). Sound and
// vibration have no headless equivalent and are logged no-ops.
type ShoutrrrPresenter struct {
	URL string
}

func (p ShoutrrrPresenter) PlaySound(priority Priority) {
	log.Printf("notify: sound (%s priority)", priority)
}

func (p ShoutrrrPresenter) Vibrate() {
	log.Printf("notify: vibration")
}

func (p ShoutrrrPresenter) Notify(title, message string) error {
	if p.URL == "" {
		return nil
	}
	return shoutrrr.Send(p.URL, fmt.Sprintf("%s: %s", title, message))
}

// NoopPresenter swallows every delivery side effect. Used when no
// delivery URL is configured and in tests.
type NoopPresenter struct{}

func (NoopPresenter) PlaySound(Priority)       {}
func (NoopPresenter) Vibrate()                 {}
func (NoopPresenter) Notify(_, _ string) error { return nil }
