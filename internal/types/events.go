package types

// QueueEvent is the event type of one queue-log record.
type QueueEvent string

const (
	EventEnterQueue      QueueEvent = "ENTERQUEUE"
	EventConnect         QueueEvent = "CONNECT"
	EventCompleteCaller  QueueEvent = "COMPLETECALLER"
	EventCompleteAgent   QueueEvent = "COMPLETEAGENT"
	EventAbandon         QueueEvent = "ABANDON"
	EventExitWithTimeout QueueEvent = "EXITWITHTIMEOUT"
	EventExitEmpty       QueueEvent = "EXITEMPTY"
	EventExitWithKey     QueueEvent = "EXITWITHKEY"
	EventRingNoAnswer    QueueEvent = "RINGNOANSWER"
	EventRingCanceled    QueueEvent = "RINGCANCELED"
	EventAgentDump       QueueEvent = "AGENTDUMP"
	EventSysCompat       QueueEvent = "SYSCOMPAT"
	EventPause           QueueEvent = "PAUSE"
	EventUnpause         QueueEvent = "UNPAUSE"
	EventAddMember       QueueEvent = "ADDMEMBER"
	EventRemoveMember    QueueEvent = "REMOVEMEMBER"
)

// QueueLogRecord is the persisted shape of one queue-log event.
type QueueLogRecord struct {
	DateKey   string     `json:"dateKey" dynamodbav:"DateKey"` // partition key, YYYY-MM-DD
	Timestamp string     `json:"timestamp" dynamodbav:"Timestamp"`
	Queue     string     `json:"queue" dynamodbav:"Queue"`
	CallID    string     `json:"callId" dynamodbav:"CallID"`
	Member    string     `json:"member,omitempty" dynamodbav:"Member"`
	Event     QueueEvent `json:"event" dynamodbav:"Event"`
	Info      []string   `json:"info,omitempty" dynamodbav:"Info"`
}
