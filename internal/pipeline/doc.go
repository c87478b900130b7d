// Package pipeline runs PICRUSt2 metagenome prediction as a declarative
// list of stages.
//
// A call validates its parameters, builds a [Plan] of [Stage] values, checks
// that every program the enabled stages need is installed, then serializes
// the inputs into a fresh scratch workspace, runs the stages in order and
// reads the unstratified output tables back. The workspace is removed on
// every exit path.
//
// # Stage Order
//
//	place_seqs (full only)
//	hsp_marker, hsp_<trait>...
//	metagenome_<trait>...
//	pathways (unless no_pathways)
//
// Disabled stages stay in the plan with Enabled set to false so the order
// is visible to callers and tests.
//
// # Usage
//
//	r := pipeline.NewRunner(
//	    pipeline.WithLogger(logger),
//	    pipeline.WithEventBus(bus),
//	)
//	res, err := r.RunCustomTree(ctx, pipeline.CustomTreeInput{Table: tbl, Tree: tree}, pipeline.DefaultParams())
//	if err != nil {
//	    return err
//	}
//	ko := res.KO()
package pipeline
