package routing

import "strings"

// Row 状态机视角下的一条签收记录
type Row struct {
	ID     int64
	Unit   Unit
	Status SignatureStatus
}

// ValidateTargets checks the fan-out target list of a new letter: at least one
// unit, every unit well formed, no unit listed twice.
func ValidateTargets(targets []Unit) error {
	if len(targets) == 0 {
		return InvalidArgument("a letter must be addressed to at least one unit")
	}
	seen := make(map[Unit]struct{}, len(targets))
	for _, t := range targets {
		if err := t.Validate(); err != nil {
			return err
		}
		if _, dup := seen[t]; dup {
			return InvalidArgument("unit %s is addressed more than once", t)
		}
		seen[t] = struct{}{}
	}
	return nil
}

// SignRequest 签收并转交的输入
type SignRequest struct {
	SignatureID  int64
	Descriptions string
	// Destination 为 nil 表示不再转交, 仅在所有单位都已收到信件后允许
	Destination *Unit
}

func (r SignRequest) Validate() error {
	if r.SignatureID <= 0 {
		return InvalidArgument("signature id must be positive, got %d", r.SignatureID)
	}
	if strings.TrimSpace(r.Descriptions) == "" {
		return InvalidArgument("descriptions is required")
	}
	if r.Destination != nil {
		if err := r.Destination.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// SignPlan is the pair of rows a sign-and-forward will mutate.
type SignPlan struct {
	Signer      Row
	Destination *Row
}

// PlanSign checks every precondition of sign-and-forward against the current
// state of the letter and its rows. It does not mutate anything.
func PlanSign(letter LetterStatus, rows []Row, req SignRequest) (SignPlan, error) {
	if err := req.Validate(); err != nil {
		return SignPlan{}, err
	}
	if letter.Terminal() {
		return SignPlan{}, PreconditionFailed("letter is %s and accepts no more signatures", letter)
	}

	signer, ok := findByID(rows, req.SignatureID)
	if !ok {
		return SignPlan{}, NotFound("signature %d does not belong to this letter", req.SignatureID)
	}
	if signer.Status != SignatureArrive {
		return SignPlan{}, PreconditionFailed("signature %d is %s, only an %s row can be signed",
			signer.ID, signer.Status, SignatureArrive)
	}

	plan := SignPlan{Signer: signer}
	if req.Destination == nil {
		if n := countStatus(rows, SignatureNotArrive); n > 0 {
			return SignPlan{}, PreconditionFailed("a destination is required while %d unit(s) have not received the letter", n)
		}
		return plan, nil
	}

	dest, ok := findByUnit(rows, *req.Destination)
	if !ok {
		return SignPlan{}, NotFound("letter is not addressed to %s", *req.Destination)
	}
	// 签收人自己的行是 ARRIVE, 同样属于目的行状态不对
	if dest.ID == signer.ID {
		return SignPlan{}, PreconditionFailed("destination %s is the signer's own %s row", dest.Unit, dest.Status)
	}
	if dest.Status != SignatureNotArrive {
		return SignPlan{}, PreconditionFailed("destination %s is %s, only a %s row can receive the letter",
			dest.Unit, dest.Status, SignatureNotArrive)
	}
	plan.Destination = &dest
	return plan, nil
}

// PlanDispatch checks that signatureID may be handed the letter directly. This
// is only allowed during the initial distribution: the letter is still in
// progress and nobody has signed it yet.
func PlanDispatch(letter LetterStatus, rows []Row, signatureID int64) (Row, error) {
	if signatureID <= 0 {
		return Row{}, InvalidArgument("signature id must be positive, got %d", signatureID)
	}
	if letter.Terminal() {
		return Row{}, PreconditionFailed("letter is %s", letter)
	}
	row, ok := findByID(rows, signatureID)
	if !ok {
		return Row{}, NotFound("signature %d does not belong to this letter", signatureID)
	}
	if countStatus(rows, SignatureSigned) > 0 {
		return Row{}, PreconditionFailed("letter is already being signed, it can only move by sign-and-forward")
	}
	if row.Status != SignatureNotArrive {
		return Row{}, PreconditionFailed("signature %d is already %s", row.ID, row.Status)
	}
	return row, nil
}

// PlanHide checks the administrative hide override.
func PlanHide(letter LetterStatus) error {
	if letter != LetterOnProgress {
		return PreconditionFailed("only an %s letter can be hidden, letter is %s", LetterOnProgress, letter)
	}
	return nil
}

// Completed 所有签收行都已签字时信件完成
func Completed(rows []Row) bool {
	return len(rows) > 0 && countStatus(rows, SignatureSigned) == len(rows)
}

// CheckConsistency reports whether the stored letter status agrees with its
// rows: FINISH if and only if every row is SIGNED, and at least one row exists.
func CheckConsistency(letter LetterStatus, rows []Row) error {
	if len(rows) == 0 {
		return PreconditionFailed("letter has no signature rows")
	}
	for _, r := range rows {
		if !r.Status.Valid() {
			return PreconditionFailed("signature %d has unknown status %q", r.ID, r.Status)
		}
	}
	done := Completed(rows)
	if done && letter != LetterFinish {
		return PreconditionFailed("every signature is %s but letter is %s", SignatureSigned, letter)
	}
	if !done && letter == LetterFinish {
		return PreconditionFailed("letter is %s with %d unsigned row(s)", LetterFinish,
			len(rows)-countStatus(rows, SignatureSigned))
	}
	return nil
}

func findByID(rows []Row, id int64) (Row, bool) {
	for _, r := range rows {
		if r.ID == id {
			return r, true
		}
	}
	return Row{}, false
}

func findByUnit(rows []Row, u Unit) (Row, bool) {
	for _, r := range rows {
		if r.Unit == u {
			return r, true
		}
	}
	return Row{}, false
}

func countStatus(rows []Row, s SignatureStatus) int {
	n := 0
	for _, r := range rows {
		if r.Status == s {
			n++
		}
	}
	return n
}
