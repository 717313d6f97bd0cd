package main

import "strconv"

// verbosity is a repeatable -v flag: each occurrence raises the log level
// by one. -v=N sets it directly.
type verbosity int

func (v *verbosity) String() string { return strconv.Itoa(int(*v)) }

func (v *verbosity) Set(s string) error {
	if s == "true" {
		*v++
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*v = verbosity(n)
	return nil
}

// IsBoolFlag lets -v appear without a value.
func (v *verbosity) IsBoolFlag() bool { return true }
