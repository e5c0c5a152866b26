// Package fuseomics is a multi-omics prediction toolkit. It trains deep
// architectures that fuse several omic layers (expression, copy number,
// methylation, ...) to predict clinical endpoints, with built-in
// preprocessing, unsupervised feature selection, random hyperparameter
// search and held-out evaluation.
//
// End-users typically interact with the toolkit via the high-level Service
// façade exposed by the root package:
//
//	srv := fuseomics.New()
//	cfg := fuseomics.DefaultConfig()
//	cfg.Data.Path = "file:///data/study"
//	cfg.Data.DataTypes = []string{"gex", "cnv"}
//	cfg.Data.Targets = []string{"Subtype"}
//	record, err := srv.Runtime().Run(ctx, cfg)
//
// For more details see the README and individual sub-packages.
package fuseomics
