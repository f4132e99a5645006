package app

import (
	"github.com/dkeye/Rendezvous/internal/domain"
)

type SendFailureAction int

const (
	IgnoreFailure SendFailureAction = iota
	EvictChannel
)

// Policy decides what a failed send to a registered channel means.
type Policy interface {
	OnSendFailure(id domain.Identity, err error) SendFailureAction
}

// SimplePolicy treats every failed send as an unreachable recipient.
type SimplePolicy struct{}

func (SimplePolicy) OnSendFailure(domain.Identity, error) SendFailureAction {
	return EvictChannel
}
