// Package analysis holds the closed set of behavioral analysis agents that
// consume a cycle's signal batch concurrently: the signal detector, the
// pattern recognizer, and the intent predictor. It defines the Insight
// model they emit and the advisory text annotator the recognizer may use.
package analysis
