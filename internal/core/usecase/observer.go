package usecase

import "github.com/kirillkom/tax-law-assistant/internal/core/domain"

type nopObserver struct{}

func (nopObserver) ObserveDispatch(domain.SearchType, int, error)                          {}
func (nopObserver) ObserveGenerationAttempt(domain.GenerationAttempt, domain.AttemptState) {}
func (nopObserver) ObserveCriticVerdict(bool, bool)                                        {}
func (nopObserver) ObserveContextPacked(int, int)                                          {}
func (nopObserver) ObserveAnswer(bool, bool)                                               {}
