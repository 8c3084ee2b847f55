package repository_test

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/nordcrm/pipeline-api/internal/domain"
	"github.com/nordcrm/pipeline-api/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestKeyLock_SerializesSameKey(t *testing.T) {
	locks := repository.NewKeyLock()
	id := uuid.New()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.Lock(domain.KindDeal, id)
			defer locks.Unlock(domain.KindDeal, id)
			counter++
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestKeyLock_DifferentKeysDoNotBlock(t *testing.T) {
	locks := repository.NewKeyLock()
	a, b := uuid.New(), uuid.New()

	locks.Lock(domain.KindDeal, a)
	defer locks.Unlock(domain.KindDeal, a)

	done := make(chan struct{})
	go func() {
		locks.Lock(domain.KindDeal, b)
		locks.Unlock(domain.KindDeal, b)
		close(done)
	}()
	<-done

	// The same id under a different kind is also a distinct key
	locks.Lock(domain.KindContact, a)
	locks.Unlock(domain.KindContact, a)
}

func TestKeyLock_UnlockOfUnheldKeyPanics(t *testing.T) {
	locks := repository.NewKeyLock()
	assert.Panics(t, func() {
		locks.Unlock(domain.KindDeal, uuid.New())
	})
}
