// Package correct implements per-frame radiometric and geometric detector
// corrections: dead-pixel repair, flatfield (and optional darkfield) gain
// normalisation, elliptical distortion removal and Timepix sensor-gap
// handling. Every function returns a new image and leaves its inputs intact.
package correct
