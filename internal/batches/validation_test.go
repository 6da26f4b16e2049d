package batches

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validInput() Input {
	return Input{
		CompanyID:       1,
		LotNumber:       "LOT-7",
		ReceivedThrough: ChannelCompany,
		Items:           []ItemInput{{MaterialTypeID: 3, Color: "Red", Rolls: 2}},
	}
}

func TestValidateInputAccepts(t *testing.T) {
	in := validInput()
	result := ValidateInput(&in)
	assert.True(t, result.OK())
	assert.Equal(t, 0, result.Len())
}

func TestValidateInputReportsEveryField(t *testing.T) {
	in := Input{
		LotNumber: "   ",
		Items: []ItemInput{
			{MaterialTypeID: 3, Color: "Blue", Rolls: 1},
			{Color: "  ", Rolls: 0},
		},
	}
	result := ValidateInput(&in)
	require.False(t, result.OK())

	assert.Equal(t, "Company is required", result.Batch(AttrCompany))
	assert.Equal(t, "Lot number is required", result.Batch(AttrLotNumber))
	assert.Equal(t, "Please select how material was received", result.Batch(AttrReceivedThrough))
	assert.Empty(t, result.Item(0, AttrColor))
	assert.Equal(t, "Material type required", result.Item(1, AttrMaterialType))
	assert.Equal(t, "Color required", result.Item(1, AttrColor))
	assert.Equal(t, "Number of rolls required", result.Item(1, AttrRolls))

	kind, ok := result.Kind(ItemField(1, AttrRolls))
	require.True(t, ok)
	assert.Equal(t, KindMin, kind)
}

func TestValidateInputMediatorOnlyForMediatorChannel(t *testing.T) {
	in := validInput()
	in.ReceivedThrough = ChannelMediator
	result := ValidateInput(&in)
	assert.Equal(t, "Mediator is required", result.Batch(AttrMediator))

	in.MediatorID = 9
	assert.True(t, ValidateInput(&in).OK())

	in = validInput()
	assert.Empty(t, ValidateInput(&in).Batch(AttrMediator))
}

func TestValidateInputEmptyItems(t *testing.T) {
	in := validInput()
	in.Items = nil
	result := ValidateInput(&in)
	assert.False(t, result.OK())
}

func TestValidateInputTrims(t *testing.T) {
	in := validInput()
	in.LotNumber = "  L1 "
	in.Items[0].Color = " Teal "
	require.True(t, ValidateInput(&in).OK())
	assert.Equal(t, "L1", in.LotNumber)
	assert.Equal(t, "Teal", in.Items[0].Color)
}

func TestValidVehicleRegistration(t *testing.T) {
	cases := map[string]bool{
		"MH-12-AB-1234":  true,
		"mh12ab1234":     true,
		"DL 1 C 5":       true,
		"KA-01-A-0001":   true,
		"  gj05xy99 ":    true,
		"M-12-AB-1234":   false,
		"MH-123-AB-1":    false,
		"MH-12-ABC-1":    false,
		"MH-12-AB-12345": false,
		"":               false,
	}
	for input, want := range cases {
		assert.Equal(t, want, ValidVehicleRegistration(input), input)
	}
}

func TestValidateExitOrder(t *testing.T) {
	message := func(err error) string {
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		return exitErr.UserMessage()
	}

	in := ExitInput{TransportType: "", VehicleRegistration: "bad"}
	assert.Equal(t, "Please select a destination", message(ValidateExit(&in)))

	in.DestinationID = 4
	assert.Equal(t, "Please select transport type", message(ValidateExit(&in)))

	in.TransportType = TransportExternal
	in.VehicleRegistration = "  "
	assert.Equal(t, "Please enter vehicle registration for external transport", message(ValidateExit(&in)))

	in.VehicleRegistration = "12-AB"
	assert.Equal(t, "Please enter a valid vehicle registration number (e.g., MH-12-AB-1234)", message(ValidateExit(&in)))

	in.VehicleRegistration = "mh-12-ab-1234"
	require.NoError(t, ValidateExit(&in))
	assert.Equal(t, "MH-12-AB-1234", in.VehicleRegistration)
}

func TestValidateExitCompanyTransportIgnoresVehicle(t *testing.T) {
	in := ExitInput{DestinationID: 1, TransportType: TransportCompany, VehicleRegistration: "garbage"}
	assert.NoError(t, ValidateExit(&in))
}
