// Package models fits smooth gene-expression trends along pseudotime,
// weighted by fate probabilities.
//
// A model is prepared from a dataset plus a fate-probability matrix
// (extract pseudotime, one gene's expression and one fate's weights;
// dedupe and sort; build a test grid), fitted, and then queried for
// predictions and confidence bands on the grid.
//
// GAM is the native regressor: a penalized cubic B-spline smoother fit
// by weighted least squares with a second-difference penalty, with an
// optional expectile mode replacing the mean fit by an asymmetric one.
// Wrap adapts any weighted Fit/Predict regressor into the same
// contract; regressors without their own confidence intervals fall
// back to the prediction-error band around the fitted trend.
package models
