package core

// Verdict is the outcome class of one dissection attempt.
type Verdict uint8

const (
	VerdictError Verdict = iota
	VerdictAccept
	VerdictPass
)

func (v Verdict) String() string {
	switch v {
	case VerdictAccept:
		return "accept"
	case VerdictPass:
		return "pass"
	default:
		return "error"
	}
}

// PassReason tells why a well-formed frame was let through untouched.
type PassReason uint8

const (
	PassNone PassReason = iota
	PassNotTCP
	PassFiltered
	PassPayload
)

func (r PassReason) String() string {
	switch r {
	case PassNotTCP:
		return "not_tcp"
	case PassFiltered:
		return "filtered"
	case PassPayload:
		return "payload"
	default:
		return "none"
	}
}

// Disposition is what the dissector (or driver) decided about one frame.
// Frame is set only for VerdictAccept, Err only for VerdictError.
type Disposition struct {
	Verdict Verdict
	Frame   *ParsedFrame
	Reason  PassReason
	Err     error
}

func Accept(f *ParsedFrame) Disposition { return Disposition{Verdict: VerdictAccept, Frame: f} }
func Pass(r PassReason) Disposition      { return Disposition{Verdict: VerdictPass, Reason: r} }
func Reject(err error) Disposition       { return Disposition{Verdict: VerdictError, Err: err} }

func (d Disposition) Accepted() bool { return d.Verdict == VerdictAccept }
func (d Disposition) Passed() bool   { return d.Verdict == VerdictPass }
func (d Disposition) Failed() bool   { return d.Verdict == VerdictError }

// Label is a short metric/log label: the pass reason, the error class, or "ok".
func (d Disposition) Label() string {
	switch d.Verdict {
	case VerdictAccept:
		return "ok"
	case VerdictPass:
		return d.Reason.String()
	default:
		return string(Classify(d.Err))
	}
}
