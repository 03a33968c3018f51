package protocol

// Frame bytes.
const (
	StartByte   byte = ':'
	GoodMarker  byte = '='
	ErrorMarker byte = '!'
	Terminator  byte = '\r'
)

// BuildRequest returns ':' cmd axis payload '\r'.
func BuildRequest(cmd Command, axis AxisID, payload string) []byte {
	buf := make([]byte, 0, 4+len(payload))
	buf = append(buf, StartByte, byte(cmd), axis.Byte())
	buf = append(buf, payload...)
	return append(buf, Terminator)
}

// Response is a fully assembled reply frame.
type Response struct {
	OK      bool // '=' marker; false means '!'
	Payload string
}

// ResponseReader assembles a reply frame one byte at a time. Bytes seen
// before a marker are dropped, which absorbs the command echo of DC-motor
// controllers and line noise.
type ResponseReader struct {
	started bool
	ok      bool
	payload []byte
}

// Feed consumes one byte and reports whether the frame is complete.
func (r *ResponseReader) Feed(c byte) bool {
	switch {
	case c == GoodMarker || c == ErrorMarker:
		r.started = true
		r.ok = c == GoodMarker
		r.payload = r.payload[:0]
	case c == Terminator && r.started:
		return true
	case r.started:
		r.payload = append(r.payload, c)
	}
	return false
}

// Response returns the assembled frame. Only meaningful once Feed returned true.
func (r *ResponseReader) Response() Response {
	return Response{OK: r.ok, Payload: string(r.payload)}
}

// Reset prepares the reader for another frame.
func (r *ResponseReader) Reset() {
	r.started = false
	r.ok = false
	r.payload = r.payload[:0]
}
