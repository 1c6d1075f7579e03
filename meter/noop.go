package meter

import "github.com/ineyio/quotaledger"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ quotaledger.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnConsume(quotaledger.ConsumeEvent)         {}
func (m *NoopMeter) OnCredit(quotaledger.CreditEvent)           {}
func (m *NoopMeter) OnLimitChange(quotaledger.LimitChangeEvent) {}
func (m *NoopMeter) OnPeriodCreated(quotaledger.PeriodEvent)    {}
func (m *NoopMeter) OnReject(quotaledger.RejectEvent)           {}
func (m *NoopMeter) OnLock(quotaledger.LockEvent)               {}
