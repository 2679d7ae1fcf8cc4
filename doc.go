// Package spcluster implements spectral clustering with fuzzy and
// possibilistic partition solvers for multivariate numeric data.
//
// The pipeline converts pairwise Euclidean distances into a similarity
// graph (Gaussian, epsilon-neighborhood, or k-nearest-neighbor kernel),
// forms a graph Laplacian, embeds the observations with the eigenvectors of
// its smallest non-trivial eigenvalues, and partitions the embedding with
// hard k-means, fuzzy c-means, or possibilistic c-means. Internal
// validation indices (silhouette, Dunn, Calinski-Harabasz, partition
// entropy, fuzzy partition coefficient) score the result against the
// original feature-space distances.
//
// Basic usage:
//
//	cfg := spcluster.DefaultConfig()
//	cfg.NumClusters = 3
//	result, err := spcluster.SpectralCluster(ctx, data, cfg)
//	// result.Labels[i] is the cluster for observation i
//	// result.Silhouette scores the partition in the original space
//
// Leave cfg.Kernel empty to sweep all three kernels over parameter ranges
// derived from the median pairwise distance, and cfg.NumClusters zero to
// select k with the elbow method. SelectK exposes elbow, gap-statistic, and
// fuzzy-stability selection directly, and the individual stages
// (ComputePairwiseDistances, BuildSimilarity, BuildLaplacian,
// SpectralEmbed, KMeans, FuzzyCMeans, PossibilisticCMeans) are usable on
// their own — the solvers accept any flat row-major matrix, so they run on
// raw features as well as on embeddings.
//
// Input is expected to be preprocessed: standardized columns, no
// zero-variance features, no missing values. Non-finite values are rejected
// with ErrInvalidInput.
package spcluster
