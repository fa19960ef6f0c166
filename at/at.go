// Package at holds the AT command vocabulary shared by both sides of the
// serial link: the modem side (line assembly and canned responses) and the
// driver side (response tokenizing and classification).
package at

const (
	// Terminal Control
	CR   = '\r'
	LF   = '\n'
	CRLF = "\r\n"

	// Response Codes
	OK         = "OK"
	ERROR      = "ERROR"
	NoCarrier  = "NO CARRIER"
	NoDialtone = "NO DIALTONE"
	Busy       = "BUSY"
	NoAnswer   = "NO ANSWER"
	CmeError   = "+CME ERROR:"
	CmsError   = "+CMS ERROR:"

	// URCs (Unsolicited Result Codes)
	UrcNewMsg         = "+CMTI:"
	UrcSignalStrength = "+CSQ:"
	UrcCall           = "RING"

	// Commands
	CmdAt            = "AT"
	CmdSignalQuality = "AT+CSQ"
)

type ResponseType int

const (
	TypeFinal ResponseType = iota // OK, ERROR
	TypeURC                       // Asynchronous notifications
	TypeData                      // Intermediate command output (+CSQ: ...)
)

// IsTerminator reports whether b ends a command line. A lone CR, a lone LF
// and the CRLF pair are all accepted.
func IsTerminator(b byte) bool {
	return b == CR || b == LF
}
