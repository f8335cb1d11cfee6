package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/friperie/api/internal/domain"
	"github.com/friperie/api/internal/repositories"
)

const maxAddressesPerUser = 20

// AddressServiceDeps bundles collaborators required to construct the address service.
type AddressServiceDeps struct {
	Addresses   repositories.AddressRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      Logger
}

type addressService struct {
	addresses repositories.AddressRepository
	clock     func() time.Time
	newID     func() string
	logger    Logger
	titler    cases.Caser
}

// NewAddressService wires dependencies into an AddressService implementation.
func NewAddressService(deps AddressServiceDeps) (AddressService, error) {
	if deps.Addresses == nil {
		return nil, errors.New("address service: address repository is required")
	}
	return &addressService{
		addresses: deps.Addresses,
		clock:     utcClock(deps.Clock),
		newID:     idGenerator(deps.IDGenerator),
		logger:    loggerOrNoop(deps.Logger),
		titler:    cases.Title(language.French),
	}, nil
}

func (s *addressService) List(ctx context.Context, userID string) ([]Address, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return nil, err
	}
	addresses, err := s.addresses.List(ctx, user)
	if err != nil {
		return nil, mapRepositoryError(err, domain.ErrAddressNotFound)
	}
	sortAddresses(addresses)
	return addresses, nil
}

func (s *addressService) Get(ctx context.Context, userID, addressID string) (Address, error) {
	addresses, err := s.List(ctx, userID)
	if err != nil {
		return Address{}, err
	}
	for _, address := range addresses {
		if address.ID == strings.TrimSpace(addressID) {
			return address, nil
		}
	}
	return Address{}, fmt.Errorf("%w: %s", domain.ErrAddressNotFound, addressID)
}

func (s *addressService) Create(ctx context.Context, cmd UpsertAddressCommand) (Address, error) {
	user, err := requireID(cmd.UserID, "user id")
	if err != nil {
		return Address{}, err
	}
	now := s.clock()
	created := s.normalize(Address{
		ID:        addressIDPrefix + s.newID(),
		UserID:    user,
		Label:     cmd.Label,
		Street:    cmd.Street,
		City:      cmd.City,
		Postal:    cmd.Postal,
		Country:   cmd.Country,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err := validateAddress(created); err != nil {
		return Address{}, err
	}

	_, err = s.addresses.Replace(ctx, user, func(current []Address) ([]Address, error) {
		if len(current) >= maxAddressesPerUser {
			return nil, fmt.Errorf("%w: at most %d addresses", domain.ErrInvalidInput, maxAddressesPerUser)
		}
		address := created
		address.IsDefault = len(current) == 0 || (cmd.IsDefault != nil && *cmd.IsDefault)
		next := slices.Clone(current)
		if address.IsDefault {
			next = clearDefault(next, now)
		}
		return append(next, address), nil
	})
	if err != nil {
		return Address{}, mapRepositoryError(err, domain.ErrAddressNotFound)
	}
	return s.Get(ctx, user, created.ID)
}

func (s *addressService) Update(ctx context.Context, cmd UpsertAddressCommand) (Address, error) {
	user, err := requireID(cmd.UserID, "user id")
	if err != nil {
		return Address{}, err
	}
	id, err := requireID(cmd.AddressID, "address id")
	if err != nil {
		return Address{}, err
	}
	now := s.clock()

	var updated Address
	_, err = s.addresses.Replace(ctx, user, func(current []Address) ([]Address, error) {
		idx := slices.IndexFunc(current, func(a Address) bool { return a.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrAddressNotFound, id)
		}
		next := slices.Clone(current)
		address := next[idx]
		address.Label = cmd.Label
		address.Street = cmd.Street
		address.City = cmd.City
		address.Postal = cmd.Postal
		address.Country = cmd.Country
		address = s.normalize(address)
		if err := validateAddress(address); err != nil {
			return nil, err
		}
		address.UpdatedAt = now
		if cmd.IsDefault != nil && *cmd.IsDefault && !address.IsDefault {
			next = clearDefault(next, now)
			address.IsDefault = true
		}
		next[idx] = address
		updated = address
		return next, nil
	})
	if err != nil {
		return Address{}, mapRepositoryError(err, domain.ErrAddressNotFound)
	}
	return updated, nil
}

func (s *addressService) Delete(ctx context.Context, userID, addressID string) error {
	user, err := requireID(userID, "user id")
	if err != nil {
		return err
	}
	id, err := requireID(addressID, "address id")
	if err != nil {
		return err
	}
	now := s.clock()
	_, err = s.addresses.Replace(ctx, user, func(current []Address) ([]Address, error) {
		idx := slices.IndexFunc(current, func(a Address) bool { return a.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrAddressNotFound, id)
		}
		wasDefault := current[idx].IsDefault
		next := slices.Delete(slices.Clone(current), idx, idx+1)
		if wasDefault && len(next) > 0 {
			sortAddresses(next)
			next[0].IsDefault = true
			next[0].UpdatedAt = now
		}
		return next, nil
	})
	if err != nil {
		return mapRepositoryError(err, domain.ErrAddressNotFound)
	}
	s.logger(ctx, "address.deleted", map[string]any{"user": user, "address": id})
	return nil
}

func (s *addressService) SetDefault(ctx context.Context, userID, addressID string) (Address, error) {
	user, err := requireID(userID, "user id")
	if err != nil {
		return Address{}, err
	}
	id, err := requireID(addressID, "address id")
	if err != nil {
		return Address{}, err
	}
	now := s.clock()
	var chosen Address
	_, err = s.addresses.Replace(ctx, user, func(current []Address) ([]Address, error) {
		idx := slices.IndexFunc(current, func(a Address) bool { return a.ID == id })
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s", domain.ErrAddressNotFound, id)
		}
		next := clearDefault(slices.Clone(current), now)
		next[idx].IsDefault = true
		next[idx].UpdatedAt = now
		chosen = next[idx]
		return next, nil
	})
	if err != nil {
		return Address{}, mapRepositoryError(err, domain.ErrAddressNotFound)
	}
	return chosen, nil
}

func (s *addressService) normalize(address Address) Address {
	address.Label = strings.TrimSpace(address.Label)
	address.Street = strings.TrimSpace(address.Street)
	address.City = s.titler.String(strings.TrimSpace(address.City))
	address.Postal = strings.ToUpper(strings.TrimSpace(address.Postal))
	address.Country = strings.ToUpper(strings.TrimSpace(address.Country))
	return address
}

func validateAddress(address Address) error {
	var missing []string
	for name, value := range map[string]string{
		"street":  address.Street,
		"city":    address.City,
		"postal":  address.Postal,
		"country": address.Country,
	} {
		if value == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return nil
}

func clearDefault(addresses []Address, now time.Time) []Address {
	for i := range addresses {
		if addresses[i].IsDefault {
			addresses[i].IsDefault = false
			addresses[i].UpdatedAt = now
		}
	}
	return addresses
}

// sortAddresses orders newest first.
func sortAddresses(addresses []Address) {
	slices.SortStableFunc(addresses, func(a, b Address) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
