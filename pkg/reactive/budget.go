package reactive

// effectBudget caps effect runs within one flush. It protects against
// amplification bugs where effects cascade into more effects. When the
// cap is reached the remaining effects stay queued for the next flush.
type effectBudget struct {
	limit int
	runs  int
}

func newEffectBudget(limit int) *effectBudget {
	if limit < 0 {
		limit = 0
	}
	return &effectBudget{limit: limit}
}

// reset starts a new flush.
func (b *effectBudget) reset() {
	b.runs = 0
}

// check reserves one run. Returns ErrBudgetExceeded if the cap is reached.
func (b *effectBudget) check() error {
	if b.limit == 0 {
		return nil
	}
	if b.runs >= b.limit {
		return ErrBudgetExceeded
	}
	b.runs++
	return nil
}
