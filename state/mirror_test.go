/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/micolous/necromancer/protocol"
)

func TestProgramInputUpdatesSourceAndDiffFlag(t *testing.T) {
	m := New()
	sub := m.Subscribe()

	ok := m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput1}))
	require.True(t, ok)

	d := <-sub
	require.Equal(t, FlagProgramSource, d.Changed)
	require.Equal(t, protocol.VideoSourceInput1, d.Snapshot.ProgramInput[0])

	require.Equal(t, protocol.VideoSourceInput1, m.Get().ProgramInput[0])
}

func TestTallyBySourceScenarioA(t *testing.T) {
	m := New()
	sub := m.Subscribe()

	require.True(t, m.HandleAtom(protocol.NewAtom(&protocol.Version{Major: 2, Minor: 30})))
	<-sub
	require.True(t, m.HandleAtom(protocol.NewAtom(&protocol.InitialisationComplete{})))
	<-sub
	require.True(t, m.HandleAtom(protocol.NewAtom(&protocol.TalliedSources{
		Entries: []protocol.TallyBySourceEntry{
			{VideoSource: protocol.VideoSourceInput1, Flags: protocol.NewTallyFlags(false, true)},
		},
	})))
	d := <-sub
	require.Equal(t, FlagTallyBySource, d.Changed)

	snap := m.Get()
	flags := snap.TallyBySource[protocol.VideoSourceInput1]
	require.True(t, flags.Preview())
	require.False(t, flags.Program())
}

func TestHandleAtomIgnoresUnrelatedAtoms(t *testing.T) {
	m := New()
	require.False(t, m.HandleAtom(protocol.NewAtom(&protocol.Cut{ME: 0})))
}

func TestResetRestoresDefaultsAndBroadcasts(t *testing.T) {
	m := New()
	m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput2}))
	sub := m.Subscribe()

	m.Reset()
	d := <-sub
	require.Zero(t, len(d.Snapshot.ProgramInput))
	require.Zero(t, len(m.Get().ProgramInput))
}

func TestSubscriberDropsStaleDiffButKeepsLatest(t *testing.T) {
	m := New()
	sub := m.Subscribe()

	m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput1}))
	m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput2}))

	d := <-sub
	require.Equal(t, protocol.VideoSourceInput2, d.Snapshot.ProgramInput[0])

	select {
	case <-sub:
		t.Fatal("only one diff should be pending after coalescing")
	default:
	}
}

func TestCloneIsIndependentOfPriorSnapshot(t *testing.T) {
	m := New()
	m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput1}))
	first := m.Get()
	m.HandleAtom(protocol.NewAtom(&protocol.ProgramInput{ME: 0, VideoSource: protocol.VideoSourceInput2}))
	second := m.Get()

	require.Equal(t, protocol.VideoSourceInput1, first.ProgramInput[0])
	require.Equal(t, protocol.VideoSourceInput2, second.ProgramInput[0])
}
