package indices

import (
	"fmt"
	"protocolo/client/es"
	"protocolo/domain/protocol"
	"protocolo/session"

	"github.com/fundwit/go-commons/types"
	"github.com/sirupsen/logrus"
)

var (
	ProtocolIndexName = "protocols"
)

// ProtocolDocument is the searchable projection of a protocol. SLA status is time dependent and is not indexed.
type ProtocolDocument struct {
	protocol.Protocol

	Concluded bool `json:"concluded"`
}

type BatchActionError map[types.ID]error

func (e BatchActionError) Error() string {
	return fmt.Sprintf("%v", map[types.ID]error(e))
}

func IndexProtocols(protocols []protocol.Protocol, s *session.Session) error {
	docs := make([]ProtocolDocument, 0, len(protocols))
	for _, p := range protocols {
		docs = append(docs, ProtocolDocument{Protocol: p, Concluded: p.IsConcluded()})
	}

	if err := saveProtocolDocuments(docs, s); err != nil {
		return err
	}
	return nil
}

func saveProtocolDocuments(docs []ProtocolDocument, s *session.Session) BatchActionError {
	errs := BatchActionError{}

	for _, doc := range docs {
		if err := es.IndexFunc(ProtocolIndexName, doc.ID, doc, s); err != nil {
			errs[doc.ID] = err
			logrus.Warnf("index protocol %d %s %s", doc.ID, doc.Number, err)
		} else {
			logrus.Debugf("index protocol %d %s successfully", doc.ID, doc.Number)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}
