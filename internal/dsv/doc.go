// Package dsv reads and writes delimiter-separated lines and repairs them
// while reading.
//
// There is no quoting or escaping: a line is split on every occurrence of the
// delimiter and empty tokens are kept, so "a,,b" has three fields. Broken
// lines are handed to a mender.Mender, which joins or pads fields until the
// row has the expected column count.
//
// Input is normalised on the fly by Sanitize: a UTF-8 byte order mark is
// dropped and invalid UTF-8 is replaced with U+FFFD, without loading the whole
// file into memory.
package dsv
