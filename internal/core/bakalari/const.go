package bakalari

import "time"

// OAuth client identity the school API expects from mobile clients.
const (
	ClientID      = "ANDR"
	GrantPassword = "password"
	GrantRefresh  = "refresh_token"
	LoginEndpoint = "/api/login"
)

// API endpoints, version 3.
const (
	EndpointTimetableActual    = "/api/3/timetable/actual"
	EndpointTimetablePermanent = "/api/3/timetable/permanent"
	EndpointMarks              = "/api/3/marks"
	EndpointMarksFinal         = "/api/3/marks/final"
	EndpointMarksCountNew      = "/api/3/marks/count-new"
	EndpointKomensReceived     = "/api/3/komens/messages/received"
	EndpointKomensSent         = "/api/3/komens/messages/sent"
	EndpointKomensNoticeboard  = "/api/3/komens/messages/noticeboard"
	EndpointKomensUnread       = "/api/3/komens/messages/received/unread"
)

// TokenExpiryBuffer makes a token count as expired this long before its
// actual expiry, so in-flight requests never carry a token about to die.
const TokenExpiryBuffer = 5 * time.Minute
