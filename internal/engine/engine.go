package engine

import (
	"strconv"
	"strings"
)

// IDGenerator mints idempotency keys for event listener registration. The
// uuid-backed implementation lives in the idgen package, kept out of this
// package so the state machine never imports a concrete ID scheme.
type IDGenerator interface {
	Generate() string
}

// Engine is the character-by-character ASLAN recognizer. It owns the
// parser's whole mutable state: the recognition state, the frame stack, the
// delimiter currently being assembled, and the event bus instructions fire
// through.
type Engine struct {
	state                  parserState
	stack                  []*frame
	currentDelimiter       *delimiterData
	currentValue           string
	delimiterBuffer        string
	delimiterOpenSubstring string
	recent                 *recentDelimiters
	currentEscapeDelimiter *string
	parsingLocked          bool
	settings               Settings
	multiResults           []Node
	didStop                bool
	bus                    *eventBus
	idGen                  IDGenerator
}

// New builds an Engine from settings, ready to Feed.
func New(settings Settings, idGen IDGenerator) *Engine {
	initial := newRootFrame(settings.DefaultFieldName)
	state := stateStart
	if settings.StrictStart {
		state = stateLocked
	}
	return &Engine{
		state:                  state,
		stack:                  []*frame{initial},
		delimiterOpenSubstring: "[" + settings.Prefix,
		recent:                 newRecentDelimiters(5),
		parsingLocked:          settings.StrictStart,
		settings:               settings,
		multiResults:           []Node{initial.innerResult.Clone()},
		didStop:                true,
		bus:                    newEventBus(),
		idGen:                  idGen,
	}
}

func (e *Engine) currentFrame() *frame { return e.stack[len(e.stack)-1] }

// Feed processes input incrementally; Result/Results reflect progress made
// so far without needing Close.
func (e *Engine) Feed(input string) {
	for _, ch := range input {
		e.handleNextChar(ch)
	}
}

// Close finalizes the current document: flushes pending content, emits any
// outstanding end/end_data events, and syncs the frame stack to the root.
func (e *Engine) Close() {
	e.emitEndEventsIfRequired()
	e.emitEndDataEventsIfRequired()
	e.storeCurrentValue()
	e.syncStackToRoot()
}

// Result returns a deep copy of the current document root.
func (e *Engine) Result() Node {
	return e.stack[0].innerResult.Clone()
}

// Results returns a deep copy of every document produced so far (via Go/Stop
// framing); the in-progress document is always the last element.
func (e *Engine) Results() []Node {
	out := make([]Node, len(e.multiResults))
	for i, n := range e.multiResults {
		out[i] = n.Clone()
	}
	return out
}

// Reset rebuilds the frame stack to a single fresh root frame. It does not
// touch recognition state, buffers, lock status, or accumulated results —
// callers (handleGoDelimiter/handleStopDelimiter) Close first, which syncs
// the outgoing root into multiResults, and append the fresh root to
// multiResults themselves after calling Reset.
func (e *Engine) Reset() {
	e.stack = []*frame{newRootFrame(e.settings.DefaultFieldName)}
}

// AddContentListener registers l under a freshly generated key and returns it.
func (e *Engine) AddContentListener(l ContentListener) string {
	key := e.idGen.Generate()
	e.bus.addContent(key, l)
	return key
}

func (e *Engine) AddContentListenerWithKey(key string, l ContentListener) { e.bus.addContent(key, l) }

// AddEndListener registers l under a freshly generated key and returns it.
func (e *Engine) AddEndListener(l ContentListener) string {
	key := e.idGen.Generate()
	e.bus.addEnd(key, l)
	return key
}

func (e *Engine) AddEndListenerWithKey(key string, l ContentListener) { e.bus.addEnd(key, l) }

// AddEndDataListener registers l under a freshly generated key and returns it.
func (e *Engine) AddEndDataListener(l EndDataListener) string {
	key := e.idGen.Generate()
	e.bus.addEndData(key, l)
	return key
}

func (e *Engine) AddEndDataListenerWithKey(key string, l EndDataListener) {
	e.bus.addEndData(key, l)
}

func (e *Engine) RemoveContentListener(key string)  { e.bus.removeContent(key) }
func (e *Engine) RemoveEndListener(key string)      { e.bus.removeEnd(key) }
func (e *Engine) RemoveEndDataListener(key string)  { e.bus.removeEndData(key) }
func (e *Engine) ClearEventListeners()              { e.bus.clear() }

func isAsciiAlnum(ch rune) bool {
	return (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isAlnumOrUnderscore(ch rune) bool {
	return isAsciiAlnum(ch) || ch == '_'
}

// nthChar returns the n'th (0-indexed) rune of s, matching Rust's
// chars().nth() — distinct from a byte offset when s has multi-byte runes.
func nthChar(s string, n int) (rune, bool) {
	for _, r := range s {
		if n == 0 {
			return r, true
		}
		n--
	}
	return 0, false
}

func (e *Engine) handleNextChar(ch rune) {
	switch e.state {
	case stateGoDelimiter:
		e.handleGoDelimiter(ch)
	case stateStopDelimiter:
		e.handleStopDelimiter(ch)
	case stateGo:
		e.handleGo(ch)
	case stateStop:
		e.handleStop(ch)
	case stateStart:
		e.handleStart(ch)
	case stateMaybeDelimiter:
		e.handleMaybeDelimiter(ch)
	case stateDelimiter:
		e.handleDelimiter(ch)
	case stateReservedDelimiter:
		e.handleReservedDelimiter(ch)
	case stateObject:
		e.handleObject(ch)
	case stateArray:
		e.handleArray(ch)
	case stateComment:
		e.handleComment(ch)
	case stateEscape:
		e.handleEscape(ch)
	case stateInstructionDelimiter:
		e.handleInstructionDelimiter(ch)
	case stateInstructionDelimiterName:
		e.handleInstructionDelimiterName(ch)
	case stateInstructionDelimiterArgs:
		e.handleInstructionDelimiterArgs(ch)
	case stateDataDelimiter:
		e.handleDataDelimiter(ch)
	case stateDataDelimiterName:
		e.handleDataDelimiterName(ch)
	case stateDataDelimiterArgs:
		e.handleDataDelimiterArgs(ch)
	case stateObjectDelimiter:
		e.handleObjectDelimiter(ch)
	case stateArrayDelimiter:
		e.handleArrayDelimiter(ch)
	case stateVoidDelimiter:
		e.handleVoidDelimiter(ch)
	case stateCommentDelimiter:
		e.handleCommentDelimiter(ch)
	case stateEscapeDelimiter:
		e.handleEscapeDelimiter(ch)
	case stateEscapeDelimiterName:
		e.handleEscapeDelimiterName(ch)
	case statePartDelimiter:
		e.handlePartDelimiter(ch)
	case stateData:
		e.handleData(ch)
	case stateLocked:
		e.handleLocked(ch)
	}
}

func (e *Engine) handleLocked(ch rune) {
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer = string(ch)
	}
}

func (e *Engine) handleGoDelimiter(ch rune) {
	if ch == ']' {
		e.state = stateGo
		e.delimiterBuffer = ""
		e.currentValue = ""
		e.parsingLocked = false
		if e.settings.StrictStart && !e.didStop {
			e.Close()
			e.Reset()
			e.multiResults = append(e.multiResults, e.stack[0].innerResult.Clone())
		}
		e.didStop = false
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleStopDelimiter(ch rune) {
	if ch == ']' {
		e.state = stateStop
		e.delimiterBuffer = ""
		e.currentValue = ""
		if e.settings.StrictEnd {
			if e.settings.StrictStart {
				e.parsingLocked = true
			}
			e.Close()
			e.Reset()
			e.multiResults = append(e.multiResults, e.stack[0].innerResult.Clone())
			e.state = stateStart
			e.didStop = true
		}
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleStart(ch rune) {
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
	} else {
		e.state = stateData
		e.currentValue += string(ch)
	}
}

func (e *Engine) handleMaybeDelimiter(ch rune) {
	if len(e.delimiterBuffer) > len(e.delimiterOpenSubstring) {
		e.state = stateData
		e.currentValue += string(ch)
		return
	}
	expected, ok := nthChar(e.delimiterOpenSubstring, len(e.delimiterBuffer))
	if ok && expected == ch {
		e.delimiterBuffer += string(ch)
		if e.delimiterBuffer == e.delimiterOpenSubstring {
			e.state = stateDelimiter
		}
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) exitDelimiterIntoData(ch rune) {
	e.currentValue += e.delimiterBuffer
	e.currentValue += string(ch)
	e.delimiterBuffer = ""
	e.currentDelimiter = nil
	e.state = stateData
}

func (e *Engine) handleDelimiter(ch rune) {
	if e.parsingLocked && ch != 'g' && !e.settings.StrictStart {
		e.state = stateLocked
		return
	}
	e.currentDelimiter = &delimiterData{}
	switch ch {
	case 'd':
		e.state = stateDataDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimData, true
		e.delimiterBuffer += string(ch)
	case 'o':
		e.state = stateObjectDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimObject, true
		e.delimiterBuffer += string(ch)
	case 'i':
		e.state = stateInstructionDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimInstruction, true
		e.delimiterBuffer += string(ch)
	case 'a':
		e.state = stateArrayDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimArray, true
		e.delimiterBuffer += string(ch)
	case 'c':
		e.state = stateCommentDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimComment, true
		e.delimiterBuffer += string(ch)
	case 'e':
		e.state = stateEscapeDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimEscape, true
		e.delimiterBuffer += string(ch)
	case 'p':
		e.state = statePartDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimPart, true
		e.delimiterBuffer += string(ch)
	case 'v':
		e.state = stateVoidDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimVoid, true
		e.delimiterBuffer += string(ch)
	case 'g':
		e.state = stateGoDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimGo, true
		e.delimiterBuffer += string(ch)
	case 's':
		e.state = stateStopDelimiter
		e.currentDelimiter.kind, e.currentDelimiter.hasKind = DelimStop, true
		e.delimiterBuffer += string(ch)
	default:
		if isAsciiAlnum(ch) {
			e.state = stateReservedDelimiter
			e.delimiterBuffer += string(ch)
			return
		}
		e.exitDelimiterIntoData(ch)
		return
	}
	if e.currentDelimiter.hasKind {
		e.recent.add(e.currentDelimiter.kind)
	}
}

func (e *Engine) handleReservedDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch != ']' {
		e.exitDelimiterIntoData(ch)
		return
	}
	e.delimiterBuffer = ""
	e.state = stateData
	e.currentValue = ""
}

// closeContainer pops the current frame back into its parent, emitting
// end/end_data events and syncing first. A no-op at the root (depth 1).
func (e *Engine) closeContainer() {
	if len(e.stack) > 1 {
		e.emitEndEventsIfRequired()
		e.emitEndDataEventsIfRequired()
		e.syncStackToRoot()
		e.stack = e.stack[:len(e.stack)-1]
	}
}

func (e *Engine) handleContainerDelimiter(ch rune, nextState parserState, create func()) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch != ']' {
		e.exitDelimiterIntoData(ch)
		return
	}
	e.state = nextState
	e.delimiterBuffer = ""

	second, hasSecond := e.recent.secondMostRecentMaterial()
	secondIsData := hasSecond && second == DelimData

	if max := e.settings.MaxObjectDepth; max > 0 {
		depth := len(e.stack)
		if depth >= max {
			// closeContainer is itself a no-op at the root (depth 1), so a
			// cap of 1 behaves exactly like "never open past the root".
			e.closeContainer()
			return
		}
		key := e.currentFrame().currentKeyString()
		val, _ := e.getValueAtKey(key)
		if !val.IsContainer() {
			create()
			return
		}
		// the key already holds a container below the depth limit: fall
		// through to the ordinary substantiality-driven rule below.
	}

	if e.objectSafeLatestResult() || !secondIsData {
		key := e.currentFrame().currentKeyString()
		val, _ := e.getValueAtKey(key)
		isContainer := val.IsContainer()

		if !isContainer || !secondIsData {
			if e.currentFrame().duplicateSeen[key] {
				e.currentFrame().duplicateSeen[key] = false
				create()
				return
			}
			e.closeContainer()
		} else {
			create()
		}
		return
	}
	create()
}

func (e *Engine) handleObjectDelimiter(ch rune) {
	e.handleContainerDelimiter(ch, stateObject, e.createNewObject)
}

func (e *Engine) handleArrayDelimiter(ch rune) {
	e.handleContainerDelimiter(ch, stateArray, e.createNewArray)
}

// objectSafeLatestResult answers whether the current key's existing value is
// "substantial" — a non-blank string, or any non-void/non-absent value —
// which governs whether a container delimiter opens a new nested container
// or closes the current one.
func (e *Engine) objectSafeLatestResult() bool {
	key := e.currentFrame().currentKeyString()
	val, ok := e.getValueAtKey(key)
	if !ok {
		return false
	}
	if s, isStr := val.AsString(); isStr {
		if e.settings.CollapseObjectStartWhitespace {
			return strings.TrimSpace(s) != ""
		}
		return s != ""
	}
	return !val.IsVoid()
}

func (e *Engine) getValueAtKey(key string) (Node, bool) {
	return e.currentFrame().innerResult.GetAtKey(key)
}

func (e *Engine) createNewObject() {
	e.currentValue = ""
	key := e.currentFrame().currentKeyString()
	e.currentFrame().innerResult.SetAtKey(key, NewMapping())
	newInner, ok := e.getValueAtKey(key)
	if !ok {
		newInner = NewMapping()
	}
	e.stack = append(e.stack, newObjectFrame(e.settings.DefaultFieldName, newInner))
}

func (e *Engine) createNewArray() {
	e.currentValue = ""
	key := e.currentFrame().currentKeyString()
	e.currentFrame().innerResult.SetAtKey(key, NewSequence())
	newInner, ok := e.getValueAtKey(key)
	if !ok {
		newInner = NewSequence()
	}
	e.stack = append(e.stack, newArrayFrame(newInner))
}

func (e *Engine) handleInstructionDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == '_' {
		e.state = stateInstructionDelimiterName
		e.delimiterBuffer += string(ch)
		e.currentDelimiter.content, e.currentDelimiter.contentSet = "", true
		e.currentValue = ""
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) registerAndEmitInstruction() {
	index, partIndex := e.instructionIndices()
	key := e.currentFrame().currentKeyString()
	if e.currentFrame().shouldRegisterInstruction(key) {
		args := append([]string(nil), e.currentDelimiter.args...)
		e.currentFrame().registerInstruction(RegisteredInstruction{
			Key:       key,
			Name:      e.currentDelimiter.content,
			Index:     index,
			Args:      args,
			PartIndex: partIndex,
		})
		val, _ := e.getValueAtKey(key)
		if !val.IsContainer() {
			e.emitContentEventsForPrimitive()
		}
		if e.currentFrame().implicitArray[key] {
			e.emitContentEventsForImplicitArray()
		}
	}
}

func (e *Engine) handleInstructionDelimiterName(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	content := e.currentDelimiter.content
	if content != "" && ch == ':' {
		if strings.HasSuffix(content, "_") {
			e.exitDelimiterIntoData(ch)
			return
		}
		e.state = stateInstructionDelimiterArgs
		e.currentDelimiter.args = []string{""}
		e.currentValue = ""
		e.delimiterBuffer += string(ch)
		return
	}
	if ch == '_' && content == "" {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		if strings.HasSuffix(content, "_") {
			e.exitDelimiterIntoData(ch)
			return
		}
		e.state = stateData
		e.registerAndEmitInstruction()
		e.delimiterBuffer = ""
		e.currentValue = ""
		return
	}
	if !isAlnumOrUnderscore(ch) {
		e.exitDelimiterIntoData(ch)
		return
	}
	e.currentDelimiter.content += string(ch)
	e.delimiterBuffer += string(ch)
}

func (e *Engine) handleInstructionDelimiterArgs(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == ']' {
		e.state = stateData
		e.delimiterBuffer = ""
		e.currentValue = ""
		e.registerAndEmitInstruction()
		return
	}
	if ch == ':' {
		e.delimiterBuffer += string(ch)
		e.currentDelimiter.args = append(e.currentDelimiter.args, "")
		return
	}
	if n := len(e.currentDelimiter.args); n > 0 {
		e.currentDelimiter.args[n-1] += string(ch)
	}
	e.delimiterBuffer += string(ch)
}

func (e *Engine) instructionIndices() (int, int) {
	key := e.currentFrame().currentKeyString()
	val, ok := e.getValueAtKey(key)
	if !ok {
		return 0, 0
	}
	if val.IsArray() {
		index := 0
		if n := len(val.Sequence); n > 0 {
			if s, isStr := val.Sequence[n-1].AsString(); isStr {
				index = len(s)
			}
		}
		partIndex := len(val.Sequence) - 1
		if partIndex < 0 {
			partIndex = 0
		}
		return index, partIndex
	}
	if s, isStr := val.AsString(); isStr {
		return len(s), 0
	}
	return 0, 0
}

func (e *Engine) handleDataDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		// Bare [d] (no content) is valid in any frame: the Sequence case
		// advances to the next implicit index, the Mapping case leaves
		// current_key untouched (nextKey no-ops when contentSet is false).
		// Either way it is NOT literal text.
		e.state = stateData
		e.delimiterBuffer = ""
		e.currentValue = ""
		e.emitEndEventsIfRequired()
		e.emitEndDataEventsIfRequired()
		e.nextKey()
		return
	}
	if ch == '_' {
		e.state = stateDataDelimiterName
		e.delimiterBuffer += string(ch)
		e.currentDelimiter.content, e.currentDelimiter.contentSet = "", true
		e.currentValue = ""
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleDataDelimiterName(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	content := e.currentDelimiter.content
	if content != "" && ch == ':' {
		if strings.HasSuffix(content, "_") {
			e.exitDelimiterIntoData(ch)
			return
		}
		e.state = stateDataDelimiterArgs
		e.currentDelimiter.args = []string{""}
		e.currentValue = ""
		e.delimiterBuffer += string(ch)
		e.emitEndEventsIfRequired()
		e.emitEndDataEventsIfRequired()
		e.nextKey()
		return
	}
	if ch == '_' && content == "" {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		if strings.HasSuffix(content, "_") {
			e.exitDelimiterIntoData(ch)
			return
		}
		e.state = stateData
		e.emitEndEventsIfRequired()
		e.emitEndDataEventsIfRequired()
		e.nextKey()
		e.delimiterBuffer = ""
		e.setDataInsertionType(PolicyDefault)

		key := e.currentFrame().currentKeyString()
		alreadySeen := e.currentFrame().duplicateSeen[key]
		val, valueExists := e.getValueAtKey(key)
		if alreadySeen && valueExists && !val.IsContainer() {
			e.currentValue = e.settings.AppendSeparator
			e.storeCurrentValue()
		}
		e.currentValue = ""
		return
	}
	if !isAlnumOrUnderscore(ch) {
		e.exitDelimiterIntoData(ch)
		return
	}
	e.currentDelimiter.content += string(ch)
	e.delimiterBuffer += string(ch)
}

func (e *Engine) handleDataDelimiterArgs(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == ']' {
		e.state = stateData
		e.delimiterBuffer = ""

		arg := ""
		if len(e.currentDelimiter.args) > 0 {
			arg = e.currentDelimiter.args[0]
		}
		switch arg {
		case "a":
			e.setDataInsertionType(PolicyAppend)
		case "f":
			e.setDataInsertionType(PolicyKeepFirst)
		case "l":
			e.setDataInsertionType(PolicyKeepLast)
		default:
			e.setDataInsertionType(PolicyDefault)
		}
		e.emitEndEventsIfRequired()
		e.emitEndDataEventsIfRequired()

		key := e.currentFrame().currentKeyString()
		alreadySeen := e.currentFrame().duplicateSeen[key]
		insertionType := e.currentFrame().writePolicy[key]
		val, valueExists := e.getValueAtKey(key)
		if alreadySeen && (insertionType == PolicyAppend || insertionType == PolicyDefault) && valueExists && !val.IsContainer() {
			e.currentValue = e.settings.AppendSeparator
			e.storeCurrentValue()
		}
		e.currentValue = ""
		return
	}
	if ch == ':' {
		e.delimiterBuffer += string(ch)
		e.currentDelimiter.args = append(e.currentDelimiter.args, "")
		return
	}
	if n := len(e.currentDelimiter.args); n > 0 {
		e.currentDelimiter.args[n-1] += string(ch)
	}
	e.delimiterBuffer += string(ch)
}

func (e *Engine) handleVoidDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		e.state = stateData
		e.delimiterBuffer = ""
		e.currentValue = ""
		key := e.currentFrame().currentKeyString()
		e.currentFrame().void[key] = true
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleCommentDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		e.state = stateComment
		e.delimiterBuffer = ""
		e.currentValue = ""
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleEscapeDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == ']' {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == '_' {
		e.state = stateEscapeDelimiterName
		e.delimiterBuffer += string(ch)
		e.currentDelimiter.content, e.currentDelimiter.contentSet = "", true
		if e.currentEscapeDelimiter != nil {
			// keep literal delimiter text that is still pending inside the region
			e.storeCurrentValue()
		}
		e.currentValue = ""
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleEscapeDelimiterName(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	content := e.currentDelimiter.content
	if ch == '_' && content == "" {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		if strings.HasSuffix(content, "_") {
			e.exitDelimiterIntoData(ch)
			return
		}
		e.state = stateEscape
		e.delimiterBuffer = ""
		e.currentValue = ""

		if e.currentEscapeDelimiter == nil {
			tag := content
			e.currentEscapeDelimiter = &tag
		} else if *e.currentEscapeDelimiter != content {
			e.currentValue = "[" + e.settings.Prefix + "e_" + content
			e.storeCurrentValue()
			e.exitDelimiterIntoData(ch)
			return
		} else {
			e.currentEscapeDelimiter = nil
			e.state = stateData
			e.delimiterBuffer = ""
			e.currentValue = ""
		}
		return
	}
	if !isAlnumOrUnderscore(ch) {
		e.exitDelimiterIntoData(ch)
		return
	}
	e.currentDelimiter.content += string(ch)
	e.delimiterBuffer += string(ch)
}

func (e *Engine) handlePartDelimiter(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if e.currentEscapeDelimiter != nil {
		e.exitDelimiterIntoData(ch)
		return
	}
	if ch == ']' {
		key := e.currentFrame().currentKeyString()
		if !e.currentFrame().locked[key] {
			val, exists := e.getValueAtKey(key)
			isFalsy := !exists || val.IsVoid() || (val.IsString() && val.StringOr("") == "")
			if isFalsy {
				e.currentFrame().implicitArray[key] = true
				e.setValueAtKey(key, NewSequence(Text("")))
			} else if s, isStr := val.AsString(); isStr {
				e.currentFrame().implicitArray[key] = true
				e.setValueAtKey(key, NewSequence(Text(s), Text("")))
			} else if val.IsArray() {
				e.emitEndEventsIfRequired()
				e.appendToArrayAtKey(key, Text(""))
			}
		}
		e.state = stateData
		e.delimiterBuffer = ""
		e.currentValue = ""
		e.nextKey()
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleGo(ch rune) {
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
		return
	}
	e.exitDelimiterIntoData(ch)
}

func (e *Engine) handleStop(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
		return
	}
	e.appendToCurrentValue(ch)
}

func (e *Engine) handleObject(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
		return
	}
	e.appendToCurrentValue(ch)
}

func (e *Engine) handleArray(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
		return
	}
	e.appendToCurrentValue(ch)
}

func (e *Engine) handleComment(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
	}
}

// handleEscape mirrors the source's ordinary-character handler inside an
// open escape region exactly, including its one quirk: a literal '[' is
// speculatively pointed at MaybeDelimiter but the very next three
// statements unconditionally append it as content and reset to Data
// anyway, so only a '[' that is NOT the first character of the escaped
// content ever gets a real chance at matching the closing delimiter (via
// the subsequent stateData dispatch, which does return early on '[').
func (e *Engine) handleEscape(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
	}
	e.appendToCurrentValue(ch)
	e.storeCurrentValue()
	e.state = stateData
	e.delimiterBuffer = ""
	e.currentValue = ""
}

func (e *Engine) handleData(ch rune) {
	if e.parsingLocked {
		e.state = stateLocked
		return
	}
	if ch == '[' {
		e.state = stateMaybeDelimiter
		e.delimiterBuffer += string(ch)
		return
	}
	e.appendToCurrentValue(ch)
	e.storeCurrentValue()
}

func (e *Engine) appendToCurrentValue(ch rune) {
	e.currentValue += string(ch)
}

func (e *Engine) storeCurrentValue() {
	key := e.currentFrame().currentKeyString()

	if e.currentFrame().void[key] {
		e.currentValue = ""
		e.setValueAtKey(key, Void())
		return
	}

	if e.currentValue == "" {
		return
	}

	isLocked := e.currentFrame().locked[key]
	val, _ := e.getValueAtKey(key)
	isContainer := val.IsContainer()
	isImplicitArray := e.currentFrame().implicitArray[key]

	if !isLocked && !isContainer {
		current := val.StringOr("")
		e.setValueAtKey(key, Text(current+e.currentValue))
		e.emitContentEventsForPrimitive()
	}
	if !isLocked && isImplicitArray {
		if arr, ok := e.getValueAtKey(key); ok && arr.IsArray() && len(arr.Sequence) > 0 {
			last := arr.Sequence[len(arr.Sequence)-1].StringOr("")
			newArr := make([]Node, len(arr.Sequence))
			copy(newArr, arr.Sequence)
			newArr[len(newArr)-1] = Text(last + e.currentValue)
			e.setValueAtKey(key, Node{Kind: KindSequence, Sequence: newArr})
		}
		e.emitContentEventsForImplicitArray()
	}
	e.currentValue = ""
}

func (e *Engine) setValueAtKey(key string, v Node) {
	e.currentFrame().innerResult.SetAtKey(key, v)
	e.syncStackToRoot()
}

func (e *Engine) appendToArrayAtKey(key string, v Node) {
	e.currentFrame().innerResult.AppendAtKey(key, v)
	e.syncStackToRoot()
}

// syncStackToRoot propagates every frame's inner tree up into its parent's
// current key, innermost first, then overwrites the last recorded
// multi-document result with the (possibly still in-progress) root.
func (e *Engine) syncStackToRoot() {
	for i := len(e.stack) - 1; i >= 1; i-- {
		inner := e.stack[i].innerResult.Clone()
		parentKey := e.stack[i-1].currentKeyString()
		e.stack[i-1].innerResult.SetAtKey(parentKey, inner)
	}
	if len(e.multiResults) > 0 {
		e.multiResults[len(e.multiResults)-1] = e.stack[0].innerResult.Clone()
	}
}

func (e *Engine) setDataInsertionType(policy WritePolicy) {
	e.currentFrame().setWritePolicy(e.currentFrame().currentKeyString(), policy)
}

func (e *Engine) nextKey() {
	f := e.currentFrame()
	if f.innerResult.IsArray() {
		if e.currentDelimiter != nil && e.currentDelimiter.contentSet {
			if newIndex, err := strconv.ParseInt(e.currentDelimiter.content, 10, 64); err == nil {
				f.currentKey = IndexKey(newIndex)
				if newIndex+1 > f.minArrayIndex {
					f.minArrayIndex = newIndex + 1
				}
				return
			}
		}
		f.currentKey = IndexKey(f.minArrayIndex)
		f.minArrayIndex++
		return
	}

	if e.currentDelimiter == nil || !e.currentDelimiter.contentSet {
		return
	}
	content := e.currentDelimiter.content

	if def, ok := f.innerResult.MapGet(e.settings.DefaultFieldName); ok {
		if s, isStr := def.AsString(); isStr && s == "" {
			f.innerResult.MapSet(e.settings.DefaultFieldName, Void())
		}
	}
	if _, ok := f.innerResult.MapGet(content); ok {
		f.duplicateSeen[content] = true
	}
	f.currentKey = StringKey(content)
}

func (e *Engine) getCurrentPath() []string {
	path := make([]string, 0, len(e.stack))
	for _, f := range e.stack {
		if f.currentKey.IsIndex() {
			path = append(path, f.currentKey.String())
		} else if f.currentKey.String() != e.settings.DefaultFieldName {
			path = append(path, f.currentKey.String())
		}
	}
	return path
}

func (e *Engine) documentIndex() int {
	if len(e.multiResults) == 0 {
		return 0
	}
	return len(e.multiResults) - 1
}

func (e *Engine) emitEndEventsIfRequired() {
	if !e.settings.Emittable.End {
		return
	}
	key := e.currentFrame().currentKeyString()
	val, _ := e.getValueAtKey(key)
	if !val.IsContainer() {
		e.emitContentEventsForPrimitiveWithTag("end")
	}
	if e.currentFrame().implicitArray[key] {
		e.emitContentEventsForImplicitArrayWithTag("end")
	}
}

func (e *Engine) emitEndDataEventsIfRequired() {
	if !e.settings.Emittable.EndData {
		return
	}
	key := e.currentFrame().currentKeyString()
	val, _ := e.getValueAtKey(key)
	isContainer := val.IsContainer()
	isImplicitArray := e.currentFrame().implicitArray[key]

	if !isContainer && !isImplicitArray {
		value := val.StringOr("")
		var instructions []InstructionInfo
		for _, inst := range e.currentFrame().registeredInstructions {
			if inst.Key == key {
				instructions = append(instructions, InstructionInfo{Name: inst.Name, Args: inst.Args, Index: inst.Index})
			}
		}
		e.emitEndDataEvent([]ContentPart{{Value: value, PartIndex: 0, Instructions: instructions}}, key)
		return
	}
	if isImplicitArray {
		arr, _ := e.getValueAtKey(key)
		byPart := map[int][]InstructionInfo{}
		for _, inst := range e.currentFrame().registeredInstructions {
			if inst.Key == key {
				byPart[inst.PartIndex] = append(byPart[inst.PartIndex], InstructionInfo{Name: inst.Name, Args: inst.Args, Index: inst.Index})
			}
		}
		parts := make([]ContentPart, len(arr.Sequence))
		for i, v := range arr.Sequence {
			parts[i] = ContentPart{Value: v.StringOr(""), PartIndex: i, Instructions: byPart[i]}
		}
		e.emitEndDataEvent(parts, key)
	}
}

func (e *Engine) emitContentEventsForPrimitive() {
	e.emitContentEventsForPrimitiveWithTag("content")
}

func (e *Engine) emitContentEventsForPrimitiveWithTag(tag string) {
	if tag == "content" && !e.settings.Emittable.Content {
		return
	}
	if tag == "end" && !e.settings.Emittable.End {
		return
	}
	key := e.currentFrame().currentKeyString()
	val, _ := e.getValueAtKey(key)
	value := val.StringOr("")
	path := e.getCurrentPath()
	structure := e.Result()
	docIndex := e.documentIndex()

	for _, inst := range e.currentFrame().registeredInstructions {
		if inst.Key != key || inst.PartIndex != 0 {
			continue
		}
		ev := &Event{
			Content:       value,
			PartIndex:     0,
			FieldName:     key,
			Path:          path,
			Structure:     structure,
			Instruction:   inst.Name,
			Args:          inst.Args,
			Index:         inst.Index,
			DocumentIndex: docIndex,
			Tag:           tag,
		}
		if tag == "content" {
			e.bus.dispatchContent(ev)
		} else {
			e.bus.dispatchEnd(ev)
		}
	}
}

func (e *Engine) emitContentEventsForImplicitArray() {
	e.emitContentEventsForImplicitArrayWithTag("content")
}

func (e *Engine) emitContentEventsForImplicitArrayWithTag(tag string) {
	if tag == "content" && !e.settings.Emittable.Content {
		return
	}
	if tag == "end" && !e.settings.Emittable.End {
		return
	}
	key := e.currentFrame().currentKeyString()
	arr, _ := e.getValueAtKey(key)
	partIndex := len(arr.Sequence) - 1
	if partIndex < 0 {
		partIndex = 0
	}
	value := ""
	if len(arr.Sequence) > 0 {
		value = arr.Sequence[len(arr.Sequence)-1].StringOr("")
	}
	path := e.getCurrentPath()
	structure := e.Result()
	docIndex := e.documentIndex()

	for _, inst := range e.currentFrame().registeredInstructions {
		if inst.Key != key || inst.PartIndex != partIndex {
			continue
		}
		ev := &Event{
			Content:       value,
			PartIndex:     partIndex,
			FieldName:     key,
			Path:          path,
			Structure:     structure,
			Instruction:   inst.Name,
			Args:          inst.Args,
			Index:         inst.Index,
			DocumentIndex: docIndex,
			Tag:           tag,
		}
		if tag == "content" {
			e.bus.dispatchContent(ev)
		} else {
			e.bus.dispatchEnd(ev)
		}
	}
}

func (e *Engine) emitEndDataEvent(content []ContentPart, fieldName string) {
	if !e.settings.Emittable.EndData {
		return
	}
	ev := &EndDataEvent{
		Content:       content,
		FieldName:     fieldName,
		Path:          e.getCurrentPath(),
		Structure:     e.Result(),
		DocumentIndex: e.documentIndex(),
		Tag:           "end_data",
	}
	e.bus.dispatchEndData(ev)
}
