package pipeline

import "k8s.io/utils/clock"

// Clock is the reference clock every timing-sensitive component is built
// against instead of calling time.Now()/time.Sleep() directly, so deadline
// and backoff behavior is testable with a virtual clock. Production code
// passes clock.RealClock{}; tests pass a *testing.FakeClock and step it by
// hand. Grounded in the wider example pack's reconciler controllers
// (k8s.io/utils/clock), since the chosen teacher calls time.Now() inline.
type Clock = clock.Clock
