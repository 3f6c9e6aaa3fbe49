package feed

// scriptedSource replays a fixed sequence of items and errors, then emits
// boundaries forever. It gives the decorator tests a deterministic upstream.
type scriptedSource struct {
	meta  []string
	steps []scriptedStep
	pos   int
}

type scriptedStep struct {
	item Item
	err  error
}

func rowStep(cells ...interface{}) scriptedStep {
	return scriptedStep{item: RowItem(Row(cells))}
}

func boundaryStep() scriptedStep {
	return scriptedStep{item: BoundaryItem()}
}

func errStep(err error) scriptedStep {
	return scriptedStep{err: err}
}

func (s *scriptedSource) Meta() []string {
	return s.meta
}

func (s *scriptedSource) Next() (Item, error) {
	if s.pos >= len(s.steps) {
		return BoundaryItem(), nil
	}
	step := s.steps[s.pos]
	s.pos++
	if step.err != nil {
		return Item{}, step.err
	}
	return step.item, nil
}
