// Package shapespace implements the shape-space discretization used to
// analyze 3D cell-shape variation: percentile-based outlier filtering,
// digitization of a shape-mode coordinate into standardized bins, a
// typed spherical-harmonics coefficient schema, and the inverse
// transform of the fitted principal-component model.
package shapespace

import "errors"

// ErrInvalidParameter indicates a malformed filter or bin
// configuration, e.g. a percentile outside [0, 50) or fewer than two
// bins. Fatal to the run.
var ErrInvalidParameter = errors.New("invalid parameter")

// ErrNoCoefficients indicates that a coefficient prefix matched no
// columns, leaving the coefficient matrix entirely zero. This signals
// a configuration error (wrong prefix), not legitimately empty data.
var ErrNoCoefficients = errors.New("no coefficients found")
