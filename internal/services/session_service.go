package services

import (
	"log"
	"sync"
	"time"
)

// Период опроса водителя по умолчанию
const DefaultPollPeriod = 5 * time.Second

// Событие, которым сервер просит водителя прислать местоположение
const RequestLocationEvent = "request-location"

// Emitter получатель событий: одно соединение транспортного уровня
type Emitter interface {
	Emit(event string, payload interface{}) error
}

// driverSession активная сессия водителя одного рейса
type driverSession struct {
	mu      sync.Mutex
	tripRef string
	owner   Emitter
	ticker  *time.Ticker
	done    chan struct{}
	stopped bool
}

// tick отправляет водителю запрос местоположения, если сессия еще жива
func (s *driverSession) tick() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if err := s.owner.Emit(RequestLocationEvent, map[string]interface{}{"tripId": s.tripRef}); err != nil {
		log.Printf("Сессия рейса %s: ошибка отправки запроса местоположения: %v", s.tripRef, err)
	}
}

// stop синхронно останавливает таймер сессии. После возврата из stop
// водителю гарантированно не будет отправлено ни одного запроса.
func (s *driverSession) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true
	s.ticker.Stop()
	close(s.done)
}

// SessionService управляет сессиями водителей: на рейс — не более одной
// активной сессии с периодическим таймером запроса местоположения
type SessionService struct {
	mu       sync.Mutex
	sessions map[string]*driverSession
	period   time.Duration
}

func NewSessionService(period time.Duration) *SessionService {
	if period <= 0 {
		period = DefaultPollPeriod
	}
	return &SessionService{
		sessions: make(map[string]*driverSession),
		period:   period,
	}
}

// Start создает сессию водителя для рейса. Существующая сессия этого рейса
// сначала синхронно останавливается и только потом публикуется новая:
// после появления новой сессии ни один тик старого таймера не может
// дойти до прежнего владельца. Живой таймер на рейс всегда один.
func (s *SessionService) Start(tripRef string, owner Emitter) {
	s.mu.Lock()
	old := s.sessions[tripRef]
	delete(s.sessions, tripRef)
	s.mu.Unlock()

	if old != nil {
		old.stop()
	}

	sess := &driverSession{
		tripRef: tripRef,
		owner:   owner,
		ticker:  time.NewTicker(s.period),
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	if cur := s.sessions[tripRef]; cur != nil {
		// Конкурентный Start успел опубликовать свою сессию
		cur.stop()
	}
	s.sessions[tripRef] = sess
	s.mu.Unlock()

	go func() {
		for {
			select {
			case <-sess.done:
				return
			case <-sess.ticker.C:
				sess.tick()
			}
		}
	}()

	log.Printf("Сессия водителя запущена для рейса %s", tripRef)
}

// Stop останавливает сессию рейса. Возвращает false, если сессии не было
// (повторный вызов безопасен).
func (s *SessionService) Stop(tripRef string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[tripRef]
	if ok {
		delete(s.sessions, tripRef)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	sess.stop()
	log.Printf("Сессия водителя остановлена для рейса %s", tripRef)
	return true
}

// StopAllFor останавливает все сессии, принадлежащие соединению.
// Вызывается при разрыве соединения водителя. Возвращает рейсы,
// сессии которых были остановлены.
func (s *SessionService) StopAllFor(owner Emitter) []string {
	s.mu.Lock()
	var stopped []*driverSession
	var refs []string
	for ref, sess := range s.sessions {
		if sess.owner == owner {
			stopped = append(stopped, sess)
			refs = append(refs, ref)
			delete(s.sessions, ref)
		}
	}
	s.mu.Unlock()

	for _, sess := range stopped {
		sess.stop()
	}
	return refs
}

// Owns сообщает, принадлежит ли сессия рейса указанному соединению
func (s *SessionService) Owns(tripRef string, owner Emitter) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[tripRef]
	return ok && sess.owner == owner
}

// Active возвращает количество активных сессий
func (s *SessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
