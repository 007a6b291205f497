package core

// EncodedMessage is the wire form of a log record: the MQTT topic it is
// destined for, the serialized payload, and the publish options. Produced
// deterministically from a LogRecord plus pipeline configuration.
type EncodedMessage struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}
