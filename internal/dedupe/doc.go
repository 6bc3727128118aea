// Package dedupe recognizes gate events that are re-raised for a call the
// console already admitted, so notifications fire once per call.
package dedupe
