package routing

// SignatureStatus 单个签收行的状态, 只能单调前进
type SignatureStatus string

const (
	SignatureNotArrive SignatureStatus = "NOT_ARRIVE"
	SignatureArrive    SignatureStatus = "ARRIVE"
	SignatureSigned    SignatureStatus = "SIGNED"
)

func (s SignatureStatus) Valid() bool {
	return s == SignatureNotArrive || s == SignatureArrive || s == SignatureSigned
}

func (s SignatureStatus) rank() int {
	switch s {
	case SignatureNotArrive:
		return 0
	case SignatureArrive:
		return 1
	case SignatureSigned:
		return 2
	}
	return -1
}

// CanAdvanceTo reports whether moving from s to next is the single forward step
// NOT_ARRIVE -> ARRIVE or ARRIVE -> SIGNED.
func (s SignatureStatus) CanAdvanceTo(next SignatureStatus) bool {
	return s.Valid() && next.Valid() && next.rank() == s.rank()+1
}

// LetterStatus 信件状态. FINISH 只能由签收流程推导得出
type LetterStatus string

const (
	LetterOnProgress LetterStatus = "ON_PROGRESS"
	LetterFinish     LetterStatus = "FINISH"
	LetterHide       LetterStatus = "HIDE"
)

func (s LetterStatus) Valid() bool {
	return s == LetterOnProgress || s == LetterFinish || s == LetterHide
}

// Terminal reports whether the workflow no longer accepts transitions for the letter.
func (s LetterStatus) Terminal() bool {
	return s == LetterFinish || s == LetterHide
}

type LetterType string

const (
	LetterInternal LetterType = "Internal"
	LetterExternal LetterType = "External"
)

func (t LetterType) Valid() bool {
	return t == LetterInternal || t == LetterExternal
}
