package blockrev

import (
	"log/slog"
	"math/rand/v2"
)

// StepPhase identifies a checkpoint within one pipeline step.
type StepPhase int

const (
	// PhaseIssued: the step's write and read were issued.
	PhaseIssued StepPhase = iota
	// PhaseTransformed: the step's buffer was reversed.
	PhaseTransformed
	// PhaseAwaited: the step's write (plus barrier) and read completed.
	PhaseAwaited
)

// StepEvent describes a checkpoint of one pipeline step. Slots and blocks
// that the step does not use are -1.
type StepEvent struct {
	Iteration     int
	Phase         StepPhase
	Position      int
	WriteSlot     int
	ReadSlot      int
	TransformSlot int
	WriteBlock    int
	ReadBlock     int
}

// pipeline drives the three-slot schedule for one run.
type pipeline struct {
	fh     fileHandle
	ring   *blockRing
	eng    *engine
	flag   *CancelFlag
	rng    *rand.Rand
	log    *slog.Logger
	onStep func(StepEvent)

	blockSize  int
	blockCount int
	iterations int

	// position is the "ready to write" slot of the current step.
	position int

	stats Stats
}

func newPipeline(fh fileHandle, flag *CancelFlag, blockSize, blockCount, iterations int, cfg *options) (*pipeline, error) {
	ring, err := newBlockRing(blockSize, cfg.MaxBlockSize)
	if err != nil {
		return nil, err
	}

	return &pipeline{
		fh:         fh,
		ring:       ring,
		eng:        newEngine(fh, flag, cfg),
		flag:       flag,
		rng:        newRand(cfg),
		log:        cfg.Logger,
		onStep:     cfg.OnStep,
		blockSize:  blockSize,
		blockCount: blockCount,
		iterations: iterations,
		stats: Stats{
			BlockSize:  blockSize,
			BlockCount: blockCount,
			Iterations: iterations,
			LastBlock:  -1,
		},
	}, nil
}

// newRand returns the block selection source. A fixed seed reproduces the
// same sequence of draws.
func newRand(cfg *options) *rand.Rand {
	if cfg.SeedSet {
		return rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	}

	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}

func (p *pipeline) offset(block int) int64 {
	return int64(block) * int64(p.blockSize)
}

// run executes warm-up, the overlapped steps and the drain. Teardown always
// runs, also after a fatal error.
func (p *pipeline) run() (err error) {
	defer func() {
		err = p.teardown(err)
	}()

	first := p.rng.IntN(p.blockCount)
	p.stats.FirstBlock = first

	_, err = p.eng.issueRead(1, p.ring.bufferAt(1), p.offset(first))
	if err != nil {
		return err
	}

	err = p.eng.awaitCompletion(1)
	if err != nil {
		return err
	}

	if p.iterations == 1 {
		return p.runSingle()
	}

	p.position = 0

	for j := 0; j < p.iterations && !p.flag.IsSet(); j++ {
		err = p.step(j)
		if err != nil {
			return err
		}
	}

	return p.drain()
}

// runSingle handles k == 1: there is nothing to overlap, so the warm-up block
// is reversed in place and drained directly.
func (p *pipeline) runSingle() error {
	p.position = 1

	if !p.flag.IsSet() {
		p.transform(p.position)
	}

	return p.drain()
}

// step performs iteration j. Awaits are deferred until after the reversal so
// that the write of slot p and the read into slot p+2 overlap it.
func (p *pipeline) step(j int) error {
	idxA, idxB := p.pickBlocks()

	pos := p.position
	writeSlot, transformSlot, readSlot := pos, shift(pos, 1), shift(pos, 2)
	first, last := j == 0, j == p.iterations-1

	ev := StepEvent{
		Iteration:     j,
		Position:      pos,
		WriteSlot:     -1,
		ReadSlot:      -1,
		TransformSlot: transformSlot,
		WriteBlock:    -1,
		ReadBlock:     -1,
	}

	if !first {
		issued, err := p.eng.issueWrite(writeSlot, p.ring.bufferAt(writeSlot), p.offset(idxA))
		if err != nil {
			return err
		}

		if issued {
			p.stats.IntermediateWrites++
			ev.WriteSlot, ev.WriteBlock = writeSlot, idxA
		}
	}

	if !last {
		issued, err := p.eng.issueRead(readSlot, p.ring.bufferAt(readSlot), p.offset(idxB))
		if err != nil {
			return err
		}

		if issued {
			p.stats.IntermediateReads++
			ev.ReadSlot, ev.ReadBlock = readSlot, idxB
		}
	}

	p.log.Debug("step issued", "iteration", j, "position", pos,
		"write_block", ev.WriteBlock, "read_block", ev.ReadBlock)
	p.observe(ev, PhaseIssued)

	p.transform(transformSlot)
	p.observe(ev, PhaseTransformed)

	if !first {
		err := p.eng.sync(writeSlot)
		if err != nil {
			return err
		}
	}

	if !last {
		err := p.eng.awaitCompletion(readSlot)
		if err != nil {
			return err
		}
	}

	p.observe(ev, PhaseAwaited)

	p.position = shift(p.position, 1)

	return nil
}

// pickBlocks draws two distinct block indices. The second is drawn from a
// range one smaller and bumped past the first, so no retry is needed.
func (p *pipeline) pickBlocks() (int, int) {
	a := p.rng.IntN(p.blockCount)

	b := p.rng.IntN(p.blockCount - 1)
	if b >= a {
		b++
	}

	return a, b
}

func (p *pipeline) transform(slot int) {
	if reverseBlock(p.ring.bufferAt(slot), p.blockSize, p.flag) {
		p.stats.Reversals++
	}
}

// drain writes the last reversed buffer to a random block and waits for it.
func (p *pipeline) drain() error {
	block := p.rng.IntN(p.blockCount)

	issued, err := p.eng.issueWrite(p.position, p.ring.bufferAt(p.position), p.offset(block))
	if err != nil {
		return err
	}

	if issued {
		p.stats.LastBlock = block
	}

	return p.eng.awaitCompletion(p.position)
}

// teardown cancels what is still outstanding, waits for anything that could
// not be cancelled, releases the buffers and flushes the file.
func (p *pipeline) teardown(runErr error) error {
	cancelled := p.flag.IsSet()

	if cancelled || runErr != nil {
		res, perSlot := p.eng.cancelOutstanding()
		p.stats.Cancel = res

		if res == CancelNotCanceled {
			p.log.Warn("operations still in flight, waiting before releasing buffers", "slots", perSlot)
		} else {
			p.log.Debug("outstanding operations cancelled", "result", res)
		}
	}

	p.eng.reclaim()
	p.ring.release()

	p.stats.Cancelled = cancelled
	p.stats.Reads = p.eng.reads
	p.stats.Writes = p.eng.writes
	p.stats.Syncs = p.eng.syncs

	if runErr != nil {
		return runErr
	}

	err := p.fh.syncFile()
	if err != nil {
		return &IOError{Op: "sync", Slot: -1, Err: err}
	}

	return nil
}

func (p *pipeline) observe(ev StepEvent, phase StepPhase) {
	if p.onStep == nil {
		return
	}

	ev.Phase = phase
	p.onStep(ev)
}
