package plugin

const featureTable = "FeatureTable[Frequency]"

func bound(v float64) *float64 { return &v }

var (
	threadsParam = Parameter{
		Name: ParamThreads, Kind: KindInt, Default: 1, Min: bound(1),
		Description: "Number of threads/processes to use during workflow.",
	}
	hspMethodParam = Parameter{
		Name: ParamHSPMethod, Kind: KindString, Default: "mp", Choices: HSPMethods,
		Description: "Which hidden-state prediction method to use.",
	}
	placementToolParam = Parameter{
		Name: ParamPlacementTool, Kind: KindString, Default: "epa-ng", Choices: PlacementTools,
		Description: "Placement tool to use when placing sequences into the reference tree. " +
			"EPA-ng is the default, but SEPP is less memory intensive.",
	}
	minAlignParam = Parameter{
		Name: ParamMinAlign, Kind: KindFloat, Default: 0.8, Min: bound(0), Max: bound(1), ExclusiveMax: true,
		Description: "Proportion of a query sequence's length that must align with reference " +
			"sequences. Shorter alignments are excluded from placement and all later steps.",
	}
	maxNSTIParam = Parameter{
		Name: ParamMaxNSTI, Kind: KindFloat, Default: 2.0, Min: bound(0),
		Description: "Max nearest-sequenced taxon index for an input ASV to be output.",
	}
	edgeExponentParam = Parameter{
		Name: ParamEdgeExponent, Kind: KindFloat, Default: 0.5, Min: bound(0),
		Description: "Weights maximum parsimony transition costs by the inverse of edge lengths " +
			"raised to this power. 0 means edge lengths do not influence predictions.",
	}
	minReadsParam = Parameter{
		Name: ParamMinReads, Kind: KindInt, Default: 1, Min: bound(1),
		Description: "Minimum read count across samples for an ASV to be kept.",
	}
	minSamplesParam = Parameter{
		Name: ParamMinSamples, Kind: KindInt, Default: 1, Min: bound(1),
		Description: "Minimum number of samples an ASV must be present in to be kept.",
	}
	skipMinPathParam = Parameter{
		Name: ParamSkipMinPath, Kind: KindBool, Default: false,
		Description: "Do not run MinPath to identify which pathways are present as a first pass.",
	}
	noGapFillParam = Parameter{
		Name: ParamNoGapFill, Kind: KindBool, Default: false,
		Description: "Do not perform gap filling before predicting pathway abundances.",
	}
	skipNormParam = Parameter{
		Name: ParamSkipNorm, Kind: KindBool, Default: false,
		Description: "Skip normalizing sequence abundances by predicted marker gene copy numbers.",
	}
	noPathwaysParam = Parameter{
		Name: ParamNoPathways, Kind: KindBool, Default: false,
		Description: "Stop after metagenome prediction and produce no pathway tables.",
	}
	coverageParam = Parameter{
		Name: ParamCoverage, Kind: KindBool, Default: false,
		Description: "Also compute pathway coverage.",
	}
	highlyVerboseParam = Parameter{
		Name: ParamHighlyVerbose, Kind: KindBool, Default: false,
		Description: "Pass --verbose to every wrapped tool and log its full standard output.",
	}
)

var tableInput = Input{
	Name: "table", Type: featureTable,
	Description: "The feature table containing sequence abundances per sample.",
}

var outputs = []Output{
	{Name: OutputKOMetagenome, Type: featureTable, Description: "Predicted metagenome for KEGG orthologs"},
	{Name: OutputECMetagenome, Type: featureTable, Description: "Predicted metagenome for EC numbers"},
	{Name: OutputPathwayAbundance, Type: featureTable, Description: "Predicted MetaCyc pathway abundances", Optional: true},
	{Name: OutputPathwayCoverage, Type: featureTable, Description: "Predicted MetaCyc pathway coverages", Optional: true},
}

// Default returns the registry of both pipeline methods.
func Default() *Registry {
	return &Registry{
		Name:    "picrust2",
		Website: "https://github.com/picrust/picrust2",
		Description: "Predicts gene family and pathway abundances from marker gene data by " +
			"driving the PICRUSt2 command-line tools. Only unstratified output is supported.",
		Methods: []*Method{FullMethod(), CustomTreeMethod()},
	}
}

// FullMethod places sequences before prediction.
func FullMethod() *Method {
	return &Method{
		ID:          MethodFull,
		Name:        "Default 16S PICRUSt2 pipeline",
		Description: "Places representative sequences into the reference tree, then predicts traits, metagenomes and pathways.",
		Inputs: []Input{
			tableInput,
			{Name: "seq", Type: "FeatureData[Sequence]", Description: "Sequences (e.g. ASVs or representative OTUs) matching the feature table."},
		},
		Parameters: []Parameter{
			threadsParam, hspMethodParam, placementToolParam, minAlignParam,
			maxNSTIParam, edgeExponentParam, minReadsParam, minSamplesParam,
			skipMinPathParam, noGapFillParam, skipNormParam, noPathwaysParam,
			coverageParam, highlyVerboseParam,
		},
		Outputs: outputs,
	}
}

// CustomTreeMethod starts from an already placed tree.
func CustomTreeMethod() *Method {
	return &Method{
		ID:          MethodCustomTree,
		Name:        "16S PICRUSt2 pipeline with custom tree",
		Description: "Runs PICRUSt2 on a tree produced by another placement pipeline, such as SEPP fragment insertion.",
		Inputs: []Input{
			tableInput,
			{Name: "tree", Type: "Phylogeny[Rooted]", Description: "Tree of study ASVs placed into the reference phylogeny."},
		},
		Parameters: []Parameter{
			threadsParam, hspMethodParam, maxNSTIParam, edgeExponentParam,
			minReadsParam, minSamplesParam, skipMinPathParam, noGapFillParam,
			skipNormParam, noPathwaysParam, coverageParam, highlyVerboseParam,
		},
		Outputs: outputs,
	}
}
