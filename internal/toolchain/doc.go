// Package toolchain describes the external PICRUSt2 command-line programs:
// their names, the file naming and flag conventions of each supported
// release line (a Dialect), an argument builder, a subprocess executor and
// the up-front dependency check.
//
// Nothing here knows about pipeline ordering; the pipeline package builds
// stages out of these pieces.
package toolchain
