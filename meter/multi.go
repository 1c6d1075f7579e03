package meter

import "github.com/ineyio/quotaledger"

// Multi fans every event out to each meter in order.
type Multi []quotaledger.Meter

var _ quotaledger.Meter = Multi(nil)

func (m Multi) OnConsume(e quotaledger.ConsumeEvent) {
	for _, mm := range m {
		mm.OnConsume(e)
	}
}

func (m Multi) OnCredit(e quotaledger.CreditEvent) {
	for _, mm := range m {
		mm.OnCredit(e)
	}
}

func (m Multi) OnLimitChange(e quotaledger.LimitChangeEvent) {
	for _, mm := range m {
		mm.OnLimitChange(e)
	}
}

func (m Multi) OnPeriodCreated(e quotaledger.PeriodEvent) {
	for _, mm := range m {
		mm.OnPeriodCreated(e)
	}
}

func (m Multi) OnReject(e quotaledger.RejectEvent) {
	for _, mm := range m {
		mm.OnReject(e)
	}
}

func (m Multi) OnLock(e quotaledger.LockEvent) {
	for _, mm := range m {
		mm.OnLock(e)
	}
}
