package engine

// parserState is the character dispatcher's current mode. There is one
// state per delimiter-recognition stage, matching the ~26 states a
// from-scratch streaming bracket-delimiter recognizer needs: a handful of
// "ordinary content" states (Data, Object, Array, Comment, Escape, Go,
// Stop), the shared prefix-matching state (MaybeDelimiter), the kind-letter
// dispatch state (Delimiter), and one or more recognition states per kind
// that takes content/args.
type parserState int

const (
	stateStart parserState = iota
	stateLocked
	stateMaybeDelimiter
	stateDelimiter
	stateReservedDelimiter
	stateData
	stateObject
	stateArray
	stateComment
	stateEscape
	stateGo
	stateStop
	stateDataDelimiter
	stateDataDelimiterName
	stateDataDelimiterArgs
	stateObjectDelimiter
	stateArrayDelimiter
	stateInstructionDelimiter
	stateInstructionDelimiterName
	stateInstructionDelimiterArgs
	stateVoidDelimiter
	statePartDelimiter
	stateCommentDelimiter
	stateEscapeDelimiter
	stateEscapeDelimiterName
	stateGoDelimiter
	stateStopDelimiter
)
