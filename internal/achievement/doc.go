// Package achievement defines the data model shared by every layer of the
// achievement processor: catalog definitions and periods, workout records,
// user achievements and progress, the processing input, and the events
// published for each decision.
//
// Types here carry no behaviour beyond validation and encoding. Rule
// evaluation lives in rules and evaluator; persistence lives in store.
package achievement
