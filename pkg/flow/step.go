package flow

// Step is the position of the conversation in the query → questions → answers → results flow.
type Step string

const (
	StepQuery     Step = "query"
	StepQuestions Step = "questions"
	StepAnswers   Step = "answers"
	StepResults   Step = "results"
)

var steps = []Step{StepQuery, StepQuestions, StepAnswers, StepResults}

var stepLabels = map[Step]string{
	StepQuery:     "Query",
	StepQuestions: "Questions",
	StepAnswers:   "Answers",
	StepResults:   "Results",
}

// Steps returns the steps in flow order.
func Steps() []Step {
	return append([]Step(nil), steps...)
}

// Index is the 1-based position of s, or 0 for an unknown step.
func (s Step) Index() int {
	for i, st := range steps {
		if st == s {
			return i + 1
		}
	}
	return 0
}

func (s Step) Label() string {
	if l, ok := stepLabels[s]; ok {
		return l
	}
	return string(s)
}

// Done reports whether s comes strictly before current.
func (s Step) Done(current Step) bool {
	return s.Index() > 0 && s.Index() < current.Index()
}
