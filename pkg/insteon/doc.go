// Package insteon provides the core Insteon value types shared by the rest
// of the module: device addresses and the bit-flag fields carried inside
// standard/extended messages and all-link database records.
//
// All three types are small immutable values. Address is comparable and can
// be used directly as a map key.
package insteon
