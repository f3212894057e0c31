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

package protocol

func init() {
	registerAtom("SRsv", func() Payload { return &SaveStartupState{} })
	registerAtom("SRcl", func() Payload { return &ClearStartupState{} })
	registerAtom("SRst", func() Payload { return &RestoreStartupState{} })
}

// SaveStartupState is the "SRsv" command atom: persist the switcher's
// current configuration as its power-on default.
type SaveStartupState struct{}

func (a *SaveStartupState) Magic() Magic { return magicOf("SRsv") }

func (a *SaveStartupState) MarshalBinaryTo(b []byte) (int, error) { return 0, nil }

func (a *SaveStartupState) UnmarshalBinary(b []byte) error { return nil }

// ClearStartupState is the "SRcl" command atom: discard the saved power-on
// default, reverting to factory startup configuration.
type ClearStartupState struct{}

func (a *ClearStartupState) Magic() Magic { return magicOf("SRcl") }

func (a *ClearStartupState) MarshalBinaryTo(b []byte) (int, error) { return 0, nil }

func (a *ClearStartupState) UnmarshalBinary(b []byte) error { return nil }

// RestoreStartupState is the "SRst" command atom: re-apply the saved
// power-on default to the switcher's running configuration immediately.
type RestoreStartupState struct{}

func (a *RestoreStartupState) Magic() Magic { return magicOf("SRst") }

func (a *RestoreStartupState) MarshalBinaryTo(b []byte) (int, error) { return 0, nil }

func (a *RestoreStartupState) UnmarshalBinary(b []byte) error { return nil }
