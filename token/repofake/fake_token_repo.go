package tokenfakerepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-token-engine/token"
)

var _ token.RecordRepo = (*FakeRecordRepo)(nil)

type FakeRecordRepo struct {
	records map[string]*token.AccessTokenRecord
	hashes  map[string]string // token hash to record ID
	lock    sync.Mutex
}

func NewFakeRecordRepo() *FakeRecordRepo {
	return &FakeRecordRepo{
		records: make(map[string]*token.AccessTokenRecord),
		hashes:  make(map[string]string),
	}
}

func (r *FakeRecordRepo) Upsert(record *token.AccessTokenRecord) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	copied := *record
	r.records[record.ID] = &copied
	r.hashes[record.TokenHash] = record.ID
	return nil
}

func (r *FakeRecordRepo) Get(id string) (*token.AccessTokenRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[id]
	if !ok {
		return nil, token.ErrRecordNotFound
	}
	copied := *record
	return &copied, nil
}

func (r *FakeRecordRepo) GetByHash(tokenHash string) (*token.AccessTokenRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	id, ok := r.hashes[tokenHash]
	if !ok {
		return nil, token.ErrRecordNotFound
	}
	copied := *r.records[id]
	return &copied, nil
}

func (r *FakeRecordRepo) Revoke(id string, _ time.Time) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, ok := r.records[id]
	if !ok {
		return token.ErrRecordNotFound
	}
	record.Revoked = true
	return nil
}

func (r *FakeRecordRepo) RevokeAllForService(serviceID string, _ time.Time) ([]*token.AccessTokenRecord, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var revoked []*token.AccessTokenRecord
	for _, record := range r.records {
		if record.ServiceID != serviceID || record.Revoked {
			continue
		}
		record.Revoked = true
		copied := *record
		revoked = append(revoked, &copied)
	}
	return revoked, nil
}

func (r *FakeRecordRepo) DeleteExpired(now time.Time) (int, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	var removed int
	for id, record := range r.records {
		if record.Expired(now) {
			delete(r.hashes, record.TokenHash)
			delete(r.records, id)
			removed++
		}
	}
	return removed, nil
}
