package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheDonCipher/flashliq/types"
)

func TestPauseUnpause(t *testing.T) {
	w := newTestWorld(t, worldOpts{})

	require.ErrorIs(t, w.engine.Pause(addrStranger), ErrNotOwner)
	assert.False(t, w.engine.Paused())

	require.NoError(t, w.engine.Pause(addrOwner))
	assert.True(t, w.engine.Paused())
	// Idempotent.
	require.NoError(t, w.engine.Pause(addrOwner))
	assert.True(t, w.engine.Paused())

	require.ErrorIs(t, w.engine.Unpause(addrStranger), ErrNotOwner)
	require.NoError(t, w.engine.Unpause(addrOwner))
	assert.False(t, w.engine.Paused())
}

func TestSetTreasury(t *testing.T) {
	w := newTestWorld(t, worldOpts{})
	newTreasury := common.HexToAddress("0xB2")

	t.Run("NonOwner", func(t *testing.T) {
		require.ErrorIs(t, w.engine.SetTreasury(addrStranger, newTreasury), ErrNotOwner)
		assert.Equal(t, addrTreasury, w.engine.Treasury())
	})

	t.Run("ZeroAddress", func(t *testing.T) {
		require.ErrorIs(t, w.engine.SetTreasury(addrOwner, common.Address{}), ErrInvalidAddress)
	})

	t.Run("Rotates", func(t *testing.T) {
		require.NoError(t, w.engine.SetTreasury(addrOwner, newTreasury))
		assert.Equal(t, newTreasury, w.engine.Treasury())

		require.Len(t, w.sink.events, 1)
		updated, ok := w.sink.events[0].(types.TreasuryUpdated)
		require.True(t, ok)
		assert.Equal(t, addrTreasury, updated.OldTreasury)
		assert.Equal(t, newTreasury, updated.NewTreasury)
	})

	t.Run("ProfitFollowsRotation", func(t *testing.T) {
		require.NoError(t, w.engine.Execute(context.Background(), addrOwner, defaultParams()))
		assert.True(t, w.ledger.BalanceOf(tokenDebt, newTreasury).Sign() > 0)
		assert.Equal(t, "0", w.ledger.BalanceOf(tokenDebt, addrTreasury).String())
	})
}

func TestRescueTokens(t *testing.T) {
	w := newTestWorld(t, worldOpts{})
	stray := common.HexToAddress("0x63")
	require.NoError(t, w.ledger.Mint(stray, addrEngine, big.NewInt(777)))

	t.Run("NonOwner", func(t *testing.T) {
		require.ErrorIs(t, w.engine.RescueTokens(addrStranger, stray, big.NewInt(777)), ErrNotOwner)
	})

	t.Run("ZeroToken", func(t *testing.T) {
		require.ErrorIs(t, w.engine.RescueTokens(addrOwner, common.Address{}, big.NewInt(1)), ErrInvalidAddress)
	})

	t.Run("BadAmount", func(t *testing.T) {
		require.ErrorIs(t, w.engine.RescueTokens(addrOwner, stray, nil), ErrInvalidAmount)
		require.ErrorIs(t, w.engine.RescueTokens(addrOwner, stray, big.NewInt(0)), ErrInvalidAmount)
	})

	t.Run("ExceedsBalance", func(t *testing.T) {
		require.Error(t, w.engine.RescueTokens(addrOwner, stray, big.NewInt(778)))
	})

	t.Run("SweepsToTreasury", func(t *testing.T) {
		require.NoError(t, w.engine.RescueTokens(addrOwner, stray, big.NewInt(777)))
		assert.Equal(t, "777", w.ledger.BalanceOf(stray, addrTreasury).String())
		assert.Equal(t, "0", w.ledger.BalanceOf(stray, addrEngine).String())
	})
}

func TestOwnershipHandshake(t *testing.T) {
	w := newTestWorld(t, worldOpts{})
	nominee := common.HexToAddress("0xA2")

	t.Run("NonOwnerCannotNominate", func(t *testing.T) {
		require.ErrorIs(t, w.engine.TransferOwnership(addrStranger, nominee), ErrNotOwner)
	})

	t.Run("ZeroNominee", func(t *testing.T) {
		require.ErrorIs(t, w.engine.TransferOwnership(addrOwner, common.Address{}), ErrInvalidAddress)
	})

	t.Run("AcceptWithoutNomination", func(t *testing.T) {
		require.ErrorIs(t, w.engine.AcceptOwnership(nominee), ErrNotOwner)
	})

	t.Run("Handshake", func(t *testing.T) {
		require.NoError(t, w.engine.TransferOwnership(addrOwner, nominee))
		assert.Equal(t, nominee, w.engine.PendingOwner())
		// Nothing changes until the nominee accepts.
		assert.Equal(t, addrOwner, w.engine.Owner())

		require.ErrorIs(t, w.engine.AcceptOwnership(addrStranger), ErrNotOwner)

		require.NoError(t, w.engine.AcceptOwnership(nominee))
		assert.Equal(t, nominee, w.engine.Owner())
		assert.Equal(t, common.Address{}, w.engine.PendingOwner())
	})

	t.Run("OldOwnerLosesAccess", func(t *testing.T) {
		require.ErrorIs(t, w.engine.Pause(addrOwner), ErrNotOwner)
		require.NoError(t, w.engine.Pause(nominee))
		require.NoError(t, w.engine.Unpause(nominee))
	})

	t.Run("NewOwnerExecutes", func(t *testing.T) {
		err := w.engine.Execute(context.Background(), nominee, defaultParams())
		require.NoError(t, err)
	})
}

func TestCollaboratorAccessors(t *testing.T) {
	w := newTestWorld(t, worldOpts{})
	assert.Equal(t, addrEngine, w.engine.Address())
	assert.Equal(t, addrPool, w.engine.PoolSource())
	assert.Equal(t, addrVault, w.engine.VaultSource())
	assert.Equal(t, addrPrimary, w.engine.PrimaryVenue())
	assert.Equal(t, addrFallback, w.engine.FallbackVenue())
}
