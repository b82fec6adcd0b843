package lattice

// CheckLatticeLaws verifies the lattice laws from spec.md section 8,
// property 1, against three arbitrary values of a concrete domain. It is
// meant to be called from each domain's own _test.go with bottom/top/sample
// values of that domain; a non-nil error names which law failed.
func CheckLatticeLaws[T Domain[T]](a, b, c, bottom, top T) error {
	if !a.Leq(a) {
		return errLaw("reflexivity: a.Leq(a)")
	}
	if a.Leq(b) && b.Leq(c) && !a.Leq(c) {
		return errLaw("transitivity: a.Leq(b) && b.Leq(c) => a.Leq(c)")
	}
	join := a.Join(b)
	if !a.Leq(join) || !b.Leq(join) {
		return errLaw("join is an upper bound")
	}
	meet := a.Meet(b)
	if !meet.Leq(a) || !meet.Leq(b) {
		return errLaw("meet is a lower bound")
	}
	if !bottom.Leq(a) {
		return errLaw("bottom.Leq(a)")
	}
	if !a.Leq(top) {
		return errLaw("a.Leq(top)")
	}
	return nil
}

type lawError string

func (e lawError) Error() string { return "lattice law violated: " + string(e) }

func errLaw(msg string) error { return lawError(msg) }

// CheckWideningTermination iterates widen over a finite ascending chain and
// reports whether it stabilizes within maxSteps (spec.md section 8, property
// 2). It returns the number of steps taken to stabilize, or -1 if it never
// stabilized within maxSteps.
func CheckWideningTermination[T Domain[T]](chain []T, maxSteps int) int {
	if len(chain) == 0 {
		return 0
	}
	y := chain[0]
	for i := 1; i < len(chain) && i <= maxSteps; i++ {
		next := y.Widening(chain[i])
		if next.Leq(y) && y.Leq(next) {
			return i
		}
		y = next
	}
	return -1
}
